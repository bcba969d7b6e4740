package render

import (
	"sync"

	"github.com/charmbracelet/glamour"
)

// maxIdle bounds the renderers kept per option set. Streaming re-renders the
// growing reply on every fragment, so a handful is enough.
const maxIdle = 4

// pool lends out glamour renderers. A TermRenderer must not render
// concurrently, so every checkout is exclusive until returned.
type pool struct {
	mu   sync.Mutex
	idle map[Options][]*glamour.TermRenderer
}

var renderers = &pool{idle: make(map[Options][]*glamour.TermRenderer)}

func (p *pool) get(opts Options) (*glamour.TermRenderer, error) {
	p.mu.Lock()
	if free := p.idle[opts]; len(free) > 0 {
		r := free[len(free)-1]
		p.idle[opts] = free[:len(free)-1]
		p.mu.Unlock()
		return r, nil
	}
	p.mu.Unlock()

	return newRenderer(opts)
}

func (p *pool) put(opts Options, r *glamour.TermRenderer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.idle[opts]) < maxIdle {
		p.idle[opts] = append(p.idle[opts], r)
	}
}

// idleCount returns how many renderers wait for opts
func (p *pool) idleCount(opts Options) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle[opts])
}

func (p *pool) reset() {
	p.mu.Lock()
	p.idle = make(map[Options][]*glamour.TermRenderer)
	p.mu.Unlock()
}

func newRenderer(opts Options) (*glamour.TermRenderer, error) {
	width := opts.Width
	if width <= 0 {
		width = defaultWidth
	}
	ro := []glamour.TermRendererOption{
		styleOption(opts.Style),
		glamour.WithWordWrap(width),
		glamour.WithTableWrap(opts.TableWrap),
		glamour.WithInlineTableLinks(opts.InlineTableLinks),
	}
	if opts.EnableEmoji {
		ro = append(ro, glamour.WithEmoji())
	}
	if opts.PreserveNewLines {
		ro = append(ro, glamour.WithPreservedNewLines())
	}
	return glamour.NewTermRenderer(ro...)
}
