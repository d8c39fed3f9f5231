package runner

import (
	"sort"
	"sync"

	"coderunner/internal/execution/sandbox/profile"
	appErr "coderunner/pkg/errors"
)

// LanguageInfo describes a registered language for listings.
type LanguageInfo struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Version  string       `json:"version,omitempty"`
	Mode     profile.Mode `json:"mode"`
	Compiled bool         `json:"compiled"`
}

// Registry maps language ids to pipelines. It is filled at startup and
// only read afterwards.
type Registry struct {
	mu        sync.RWMutex
	pipelines map[string]Pipeline
}

// NewRegistry builds one pipeline per spec.
func NewRegistry(specs []profile.LanguageSpec, opts Options) (*Registry, error) {
	r := &Registry{pipelines: make(map[string]Pipeline, len(specs))}
	for _, lang := range specs {
		p, err := NewPipeline(lang, opts)
		if err != nil {
			return nil, err
		}
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a pipeline. Ids must be unique.
func (r *Registry) Register(p Pipeline) error {
	if p == nil || p.Language() == "" {
		return appErr.ValidationError("pipeline", "language id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pipelines == nil {
		r.pipelines = make(map[string]Pipeline)
	}
	if _, exists := r.pipelines[p.Language()]; exists {
		return appErr.Newf(appErr.InvalidParams, "language %s already registered", p.Language())
	}
	r.pipelines[p.Language()] = p
	return nil
}

// Lookup returns the pipeline for an exact language id.
func (r *Registry) Lookup(id string) (Pipeline, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pipelines[id]
	return p, ok
}

// Languages lists registered languages sorted by id.
func (r *Registry) Languages() []LanguageInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]LanguageInfo, 0, len(r.pipelines))
	for id, p := range r.pipelines {
		info := LanguageInfo{ID: id, Name: id, Mode: profile.ModeInline}
		if d, ok := p.(Describer); ok {
			lang := d.Spec()
			info.Name = lang.DisplayName()
			info.Version = lang.Version
			info.Mode = lang.Mode
		}
		info.Compiled = info.Mode == profile.ModeCompiled
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
