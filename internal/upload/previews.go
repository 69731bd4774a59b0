package upload

import (
	"strings"
	"sync"

	"checklist-cli/internal/metrics"

	"github.com/google/uuid"
)

const previewScheme = "preview://"

// Previews holds file bytes addressable by a local reference while an upload
// is in flight, so the pending attachment can be shown before the server
// answers.
type Previews struct {
	mu   sync.Mutex
	refs map[string][]byte
}

func NewPreviews() *Previews {
	return &Previews{refs: map[string][]byte{}}
}

func (p *Previews) Create(data []byte) string {
	ref := previewScheme + uuid.NewString()
	p.mu.Lock()
	p.refs[ref] = data
	p.mu.Unlock()
	metrics.PreviewsOpen.Inc()
	return ref
}

func (p *Previews) Get(ref string) ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.refs[ref]
	return b, ok
}

// Release frees ref. Releasing an unknown or already released ref is a no-op.
func (p *Previews) Release(ref string) {
	p.mu.Lock()
	_, ok := p.refs[ref]
	delete(p.refs, ref)
	p.mu.Unlock()
	if ok {
		metrics.PreviewsOpen.Dec()
	}
}

func (p *Previews) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.refs)
}

func IsPreviewRef(url string) bool { return strings.HasPrefix(url, previewScheme) }
