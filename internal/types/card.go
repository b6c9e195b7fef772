package types

// Card is a collectible card known to the card database
type Card struct {
	ID       int            `yaml:"id" json:"id"`
	Name     string         `yaml:"name" json:"name"`
	Metadata map[string]any `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// UnknownCard is the pick-history sentinel for a pick that was missed
var UnknownCard = Card{ID: NoCard, Name: "unknown"}

// IsUnknown reports whether c is the missed-pick sentinel
func (c Card) IsUnknown() bool {
	return c.ID == NoCard
}

// Hero is a playable class
type Hero struct {
	ID   int    `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
}

// Feature is a bit of the internal feature-flag mask
type Feature uint32

const (
	FeatureEnableAll Feature = 1 << iota
	FeatureScoring
	FeatureAPICalling
	FeatureStrawpolling
	FeatureDrawHandling
	FeatureBuildFromDraws
)

var featureNames = []struct {
	f    Feature
	name string
}{
	{FeatureEnableAll, "all"},
	{FeatureScoring, "scoring"},
	{FeatureAPICalling, "api"},
	{FeatureStrawpolling, "strawpoll"},
	{FeatureDrawHandling, "draws"},
	{FeatureBuildFromDraws, "buildfromdraws"},
}

func (f Feature) String() string {
	for _, n := range featureNames {
		if n.f == f {
			return n.name
		}
	}
	return "unknown"
}

// ParseFeature maps a command-facing flag name to its bit
func ParseFeature(name string) (Feature, bool) {
	for _, n := range featureNames {
		if n.name == name {
			return n.f, true
		}
	}
	return 0, false
}

// Features lists every known feature flag
func Features() []Feature {
	out := make([]Feature, len(featureNames))
	for i, n := range featureNames {
		out[i] = n.f
	}
	return out
}
