package events

import (
	"os"
	"path/filepath"
	"sync"
)

// FileHandler appends events as JSONL (one JSON line per event) to a single
// log file. Deliveries are handled concurrently, so writes are serialized;
// lines from interleaved deliveries are told apart by their DeliveryID.
type FileHandler struct {
	mu   sync.Mutex
	file *os.File
}

// NewFileHandler opens (or creates) the log file at path for appending.
func NewFileHandler(path string) (*FileHandler, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileHandler{file: f}, nil
}

// Handle writes one event line. Failures are swallowed: the log is an
// observability artifact, never a reason to fail a delivery.
func (h *FileHandler) Handle(event Event) {
	data, err := MarshalEvent(event)
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.file == nil {
		return
	}
	h.file.Write(data)
	h.file.Write([]byte("\n"))
}

// Close closes the log file.
func (h *FileHandler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.file != nil {
		h.file.Close()
		h.file = nil
	}
}
