package handlers

import (
	"log"
	"net/http"
)

// Invalidator drops cached datasets. *datasets.Cache implements it.
type Invalidator interface {
	Invalidate()
}

// Notifier pushes a message to connected clients. *ChatHub implements it.
type Notifier interface {
	Broadcast(message interface{})
}

// RefreshHandler handles POST /api/datasets/refresh: the dataset cache is
// dropped and connected chat sockets are told about it.
type RefreshHandler struct {
	cache    Invalidator
	notifier Notifier
}

// NewRefreshHandler creates a refresh handler. notifier may be nil.
func NewRefreshHandler(cache Invalidator, notifier Notifier) *RefreshHandler {
	return &RefreshHandler{cache: cache, notifier: notifier}
}

func (h *RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.Refresh()
	w.WriteHeader(http.StatusNoContent)
}

// Refresh drops the cache and notifies sockets. The dataset directory
// watcher calls it directly.
func (h *RefreshHandler) Refresh() {
	h.cache.Invalidate()
	log.Println("Dataset cache invalidated")
	if h.notifier != nil {
		h.notifier.Broadcast(SocketMessage{Type: SocketNotice, Notice: NoticeDatasetsRefreshed})
	}
}
