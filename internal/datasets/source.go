package datasets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/scrypster/energy-services/internal/config"
)

// maxDocumentSize caps a single dataset download.
const maxDocumentSize = 64 << 20

// Source fetches the raw bytes of a dataset file.
type Source interface {
	Fetch(ctx context.Context, file string) ([]byte, error)
}

// DirSource reads dataset files from a local directory.
type DirSource struct {
	dir string
}

// NewDirSource creates a source rooted at dir.
func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

// Fetch reads dir/file. Only the base name of file is used so callers cannot
// escape the directory.
func (s *DirSource) Fetch(ctx context.Context, file string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.dir, filepath.Base(file)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", file, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read %s: %w", file, err)
	}
	return data, nil
}

// HTTPSource fetches dataset files relative to a base URL.
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

// NewHTTPSource creates a source that GETs baseURL/file.
func NewHTTPSource(baseURL string, timeout time.Duration) *HTTPSource {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Fetch downloads one dataset file.
func (s *HTTPSource) Fetch(ctx context.Context, file string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/"+file, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", file, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s: %w", file, ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s returned status %d", file, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", file, err)
	}
	return data, nil
}

// NewSource builds the Source selected by the data configuration.
func NewSource(cfg config.DataConfig) (Source, error) {
	switch cfg.Source {
	case "dir", "":
		return NewDirSource(cfg.DataPath), nil
	case "http":
		if cfg.BaseURL == "" {
			return nil, errors.New("datasets: http source requires a base URL")
		}
		return NewHTTPSource(cfg.BaseURL, cfg.FetchTimeout), nil
	default:
		return nil, fmt.Errorf("unsupported dataset source: %q", cfg.Source)
	}
}

var (
	_ Source = (*DirSource)(nil)
	_ Source = (*HTTPSource)(nil)
)
