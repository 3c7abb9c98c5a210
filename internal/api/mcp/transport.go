package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

// maxFrame bounds a single request line.
const maxFrame = 4 * 1024 * 1024

// StdioTransport serves line-delimited JSON-RPC 2.0 over a reader/writer pair.
//
// Each request is one newline-terminated line and each response is written as
// one line. Notifications get no response line. Diagnostics go to stderr only,
// since stray bytes on stdout break the framing.
type StdioTransport struct {
	server *Server
	in     *bufio.Reader
	out    io.Writer
	logger *log.Logger
}

// NewStdioTransport creates a transport that reads from in and writes to out.
//
//	t := mcp.NewStdioTransport(srv, os.Stdin, os.Stdout)
//	t.Serve(ctx)
func NewStdioTransport(srv *Server, in io.Reader, out io.Writer) *StdioTransport {
	return &StdioTransport{
		server: srv,
		in:     bufio.NewReaderSize(in, 64*1024),
		out:    out,
		logger: log.New(os.Stderr, "energy-mcp: ", log.LstdFlags),
	}
}

// Serve handles requests in arrival order until in reaches EOF or ctx is
// cancelled. A clean EOF returns nil.
func (t *StdioTransport) Serve(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			t.logger.Println("context cancelled, shutting down")
			return err
		}

		line, err := t.readFrame()
		if len(line) > 0 {
			if werr := t.handle(ctx, line); werr != nil {
				return werr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				t.logger.Println("stdin closed, shutting down")
				return nil
			}
			if errors.Is(err, errFrameTooLarge) {
				t.logger.Printf("WARNING: dropped request larger than %d bytes", maxFrame)
				if werr := t.write(errorFrame(nil, ErrCodeInvalidRequest, "request too large")); werr != nil {
					return werr
				}
				continue
			}
			return fmt.Errorf("stdin: %w", err)
		}
	}
}

var errFrameTooLarge = errors.New("frame too large")

// readFrame returns the next non-empty line without its terminator. An
// oversized line is consumed entirely and reported as errFrameTooLarge.
func (t *StdioTransport) readFrame() ([]byte, error) {
	var frame []byte
	for {
		chunk, err := t.in.ReadSlice('\n')
		if len(frame)+len(chunk) > maxFrame {
			frame = nil
			if errors.Is(err, bufio.ErrBufferFull) {
				if derr := t.discardLine(); derr != nil {
					return nil, derr
				}
			}
			return nil, errFrameTooLarge
		}
		frame = append(frame, chunk...)
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		frame = bytes.TrimSpace(frame)
		if err != nil {
			return frame, err
		}
		if len(frame) == 0 {
			continue
		}
		return frame, nil
	}
}

func (t *StdioTransport) discardLine() error {
	for {
		_, err := t.in.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return err
	}
}

func (t *StdioTransport) handle(ctx context.Context, line []byte) error {
	var head struct {
		ID     json.RawMessage `json:"id"`
		Method string          `json:"method"`
	}
	_ = json.Unmarshal(line, &head)

	resp, err := t.server.HandleRequest(ctx, line)
	if err != nil {
		t.logger.Printf("ERROR: handling %q: %v", head.Method, err)
		resp = errorFrame(head.ID, ErrCodeInternalError, "internal error")
	}

	if isNotification(head.ID, head.Method) {
		return nil
	}
	return t.write(resp)
}

func (t *StdioTransport) write(resp []byte) error {
	if _, err := fmt.Fprintf(t.out, "%s\n", resp); err != nil {
		t.logger.Printf("ERROR: write: %v", err)
		return fmt.Errorf("write response: %w", err)
	}
	return nil
}

// isNotification reports JSON-RPC notifications, which carry no id and
// expect no reply.
func isNotification(id json.RawMessage, method string) bool {
	if len(id) != 0 && string(id) != "null" {
		return false
	}
	return method == "initialized" || strings.HasPrefix(method, "notifications/")
}

// errorFrame builds an error response, falling back to a fixed frame if the
// id cannot be encoded.
func errorFrame(id json.RawMessage, code int, message string) []byte {
	var rawID interface{}
	if len(id) > 0 {
		rawID = id
	}
	data, err := json.Marshal(JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      rawID,
		Error:   &JSONRPCError{Code: code, Message: message},
	})
	if err != nil {
		return []byte(`{"jsonrpc":"2.0","id":null,"error":{"code":-32603,"message":"internal error"}}`)
	}
	return data
}
