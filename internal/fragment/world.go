package fragment

import (
	"strings"

	"github.com/NikhilSetiya/hello-world-aggregator/pkg/logging"
	"github.com/NikhilSetiya/hello-world-aggregator/pkg/types"
)

var worldWords = map[string]string{
	"en": "World",
	"es": "Mundo",
	"fr": "Monde",
	"de": "Welt",
	"it": "Mondo",
	"zh": "世界",
	"ja": "世界",
}

var planetNames = map[types.PlanetType]string{
	types.PlanetMars:    "Mars",
	types.PlanetVenus:   "Venus",
	types.PlanetJupiter: "Jupiter",
	types.PlanetSaturn:  "Saturn",
	types.PlanetNeptune: "Neptune",
	types.PlanetUranus:  "Uranus",
	types.PlanetMercury: "Mercury",
	types.PlanetPluto:   "Pluto",
}

const plutoStandardText = "Pluto (not a planet anymore, but we include it anyway)"

// worldWord returns the word for the addressed world. Earth is localized,
// other planets are named.
func worldWord(c WorldContext) string {
	if c.PlanetType == types.PlanetEarth {
		if word, ok := worldWords[c.Language]; ok {
			return word
		}
		logging.GetLogger().Warn("Unsupported language, defaulting to English", "language", c.Language, "family", FamilyWorld)
		return worldWords["en"]
	}
	if name, ok := planetNames[c.PlanetType]; ok {
		return name
	}
	return "Universe"
}

type standardWorld struct{}

func (standardWorld) Name() string                   { return StrategyStandard }
func (standardWorld) IsApplicable(WorldContext) bool { return true }

func (standardWorld) Produce(c WorldContext) string {
	if c.PlanetType == types.PlanetPluto {
		return plutoStandardText
	}
	return worldWord(c)
}

type emphasizedWorld struct{}

func (emphasizedWorld) Name() string { return StrategyEmphasized }

func (emphasizedWorld) IsApplicable(c WorldContext) bool {
	return c.Scope == types.ScopeGlobal &&
		(c.PlanetType == types.PlanetEarth || c.PlanetType == types.PlanetMars)
}

func (emphasizedWorld) Produce(c WorldContext) string {
	return strings.ToUpper(worldWord(c)) + "!!!"
}

// WorldStrategies returns the world family in enumeration order
func WorldStrategies() []Strategy[WorldContext] {
	return []Strategy[WorldContext]{standardWorld{}, emphasizedWorld{}}
}

// WorldPriority ranks the world family, highest first
var WorldPriority = []string{StrategyEmphasized, StrategyStandard}

// NewWorldSelector returns the selector for the world family
func NewWorldSelector() *Selector[WorldContext] {
	return MustSelector(FamilyWorld, WorldStrategies(), WorldPriority, StrategyStandard)
}
