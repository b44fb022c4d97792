package messaging

import (
	"sync"

	"inappkit/internal/types"
)

// Compile-time assertion that RendererRegistry implements Renderer.
var _ Renderer = (*RendererRegistry)(nil)

// RendererRegistry maps content kinds to the renderer that draws them. A
// message whose kind has no registered renderer cannot be displayed.
type RendererRegistry struct {
	mu        sync.RWMutex
	renderers map[types.ContentKind]Renderer
}

// NewRendererRegistry creates an empty registry.
func NewRendererRegistry() *RendererRegistry {
	return &RendererRegistry{renderers: make(map[types.ContentKind]Renderer)}
}

// Register installs r for the given content kinds, replacing any previous
// renderer for them.
func (r *RendererRegistry) Register(renderer Renderer, kinds ...types.ContentKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range kinds {
		r.renderers[k] = renderer
	}
}

// Supports reports whether a renderer is registered for kind.
func (r *RendererRegistry) Supports(kind types.ContentKind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.renderers[kind]
	return ok
}

// CreateView dispatches on the message's content kind.
func (r *RendererRegistry) CreateView(msg types.MessageCore) (View, bool) {
	r.mu.RLock()
	renderer, ok := r.renderers[msg.Content.Kind]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return renderer.CreateView(msg)
}
