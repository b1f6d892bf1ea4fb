package gamelang

// Tier is a subscription level gating which languages a user may build with.
type Tier string

const (
	TierFree    Tier = "free"
	TierPro     Tier = "pro"
	TierPremium Tier = "premium"
)

var tierRank = map[Tier]int{
	TierFree:    0,
	TierPro:     1,
	TierPremium: 2,
}

// Rank returns the ordinal position of a tier, or -1 for unknown tiers.
func (t Tier) Rank() int {
	rank, ok := tierRank[t]
	if !ok {
		return -1
	}
	return rank
}

// Meets reports whether the tier satisfies the given minimum tier.
func (t Tier) Meets(required Tier) bool {
	return t.Rank() >= 0 && t.Rank() >= required.Rank()
}

// LanguageStatus describes the support maturity of a language.
type LanguageStatus string

const (
	StatusStable     LanguageStatus = "stable"
	StatusBeta       LanguageStatus = "beta"
	StatusAlpha      LanguageStatus = "alpha"
	StatusComingSoon LanguageStatus = "coming_soon"
	StatusLegacy     LanguageStatus = "legacy"
)

// LanguageInfo is static, process-wide metadata for a supported target
// language. It is built once at startup and never mutated.
type LanguageInfo struct {
	ID                 string         `json:"id"`
	Name               string         `json:"name"`
	DisplayName        string         `json:"display_name"`
	Description        string         `json:"description"`
	Status             LanguageStatus `json:"status"`
	RequiredTier       Tier           `json:"required_tier"`
	Features           []string       `json:"features"`
	Limitations        []string       `json:"limitations"`
	EstimatedBuildTime string         `json:"estimated_build_time"`
	SupportedPlatforms []string       `json:"supported_platforms"`
}

// StoryConfig holds the narrative parameters interpolated into starter code.
type StoryConfig struct {
	HeroName  string `json:"hero_name,omitempty"`
	EnemyName string `json:"enemy_name,omitempty"`
	Theme     string `json:"theme,omitempty"`
	Setting   string `json:"setting,omitempty"`
}

// TuningConfig holds gameplay tuning parameters.
type TuningConfig struct {
	Difficulty string  `json:"difficulty,omitempty"`
	Speed      float64 `json:"speed,omitempty"`
	Lives      int     `json:"lives,omitempty"`
}

// ColorConfig holds the palette used by generated games.
type ColorConfig struct {
	Primary    string `json:"primary,omitempty"`
	Background string `json:"background,omitempty"`
	Accent     string `json:"accent,omitempty"`
}

// GameConfig is the structured configuration attached to every game.
type GameConfig struct {
	Story  StoryConfig  `json:"story"`
	Tuning TuningConfig `json:"tuning"`
	Colors ColorConfig  `json:"colors"`
}

// Validation is the outcome of a structural code check. Warnings flag
// likely problems that do not block a build.
type Validation struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// CodeBuilder is the per-language contract: structural validation, starter
// code rendering, and tier gating. Implementations hold no mutable state.
//
// Validation is heuristic substring matching, not parsing. It is a
// best-effort lint; false positives and false negatives are possible.
type CodeBuilder interface {
	Language() string
	Info() LanguageInfo
	Validate(code string) Validation
	StarterCode(cfg GameConfig) string
	CanBuildForTier(tier Tier) bool
}
