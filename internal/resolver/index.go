package resolver

import "sync"

// WhatsappIndex maps the chat store's media paths (Media/<jid>/...) to the
// destination each file was resolved to. It is filled while the WhatsApp
// media pass runs and only read afterwards.
type WhatsappIndex struct {
	mu    sync.RWMutex
	paths map[string]string
}

// NewWhatsappIndex creates an empty index.
func NewWhatsappIndex() *WhatsappIndex {
	return &WhatsappIndex{paths: make(map[string]string)}
}

// Record maps storePath to destination.
func (w *WhatsappIndex) Record(storePath, destination string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.paths[storePath] = destination
}

// Lookup returns the destination recorded for storePath.
func (w *WhatsappIndex) Lookup(storePath string) (string, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	destination, ok := w.paths[storePath]
	return destination, ok
}

// Len returns the number of recorded paths.
func (w *WhatsappIndex) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.paths)
}
