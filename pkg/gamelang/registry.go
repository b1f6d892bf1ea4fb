package gamelang

import "sort"

// DefaultLanguage is the recommended language for new games.
const DefaultLanguage = "javascript"

// Registry maps language identifiers to their code builders. The builder set
// is fixed at construction; there is no runtime registration.
type Registry struct {
	builders map[string]CodeBuilder
}

// NewRegistry builds a registry from the given builders, keyed by language.
func NewRegistry(builders ...CodeBuilder) *Registry {
	m := make(map[string]CodeBuilder, len(builders))
	for _, b := range builders {
		m[b.Language()] = b
	}
	return &Registry{builders: m}
}

// DefaultRegistry returns the registry of all shipped languages.
func DefaultRegistry() *Registry {
	return NewRegistry(NewJavaScriptBuilder(), NewPythonBuilder())
}

// Get returns the builder for a language and whether it exists.
func (r *Registry) Get(language string) (CodeBuilder, bool) {
	b, ok := r.builders[language]
	return b, ok
}

// IsSupported reports whether a language identifier is registered.
func (r *Registry) IsSupported(language string) bool {
	_, ok := r.builders[language]
	return ok
}

// Languages returns metadata for every registered language, ordered by ID.
func (r *Registry) Languages() []LanguageInfo {
	infos := make([]LanguageInfo, 0, len(r.builders))
	for _, b := range r.builders {
		infos = append(infos, b.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// ListForTier returns the builders a subscription tier may use, ordered by
// language ID.
func (r *Registry) ListForTier(tier Tier) []CodeBuilder {
	var out []CodeBuilder
	for _, b := range r.builders {
		if b.CanBuildForTier(tier) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Language() < out[j].Language() })
	return out
}
