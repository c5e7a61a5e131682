package fragment

import (
	"encoding/base64"

	"github.com/NikhilSetiya/hello-world-aggregator/pkg/logging"
)

var helloWords = map[string]string{
	"en": "Hello",
	"es": "Hola",
	"fr": "Bonjour",
	"de": "Hallo",
	"it": "Ciao",
	"zh": "你好",
	"ja": "こんにちは",
}

// reversibleLanguages are the languages whose greeting reads sensibly backwards
var reversibleLanguages = map[string]bool{"en": true, "es": true, "fr": true}

// helloWord returns the greeting for language, defaulting to English
func helloWord(language string) string {
	if word, ok := helloWords[language]; ok {
		return word
	}
	logging.GetLogger().Warn("Unsupported language, defaulting to English", "language", language, "family", FamilyHello)
	return helloWords["en"]
}

type standardHello struct{}

func (standardHello) Name() string                   { return StrategyStandard }
func (standardHello) IsApplicable(HelloContext) bool { return true }
func (standardHello) Produce(c HelloContext) string  { return helloWord(c.Language) }

type reversedHello struct{}

func (reversedHello) Name() string { return StrategyReversed }

func (reversedHello) IsApplicable(c HelloContext) bool {
	return c.FormalityLevel < 3 && reversibleLanguages[c.Language]
}

func (reversedHello) Produce(c HelloContext) string {
	return Reverse(helloWord(c.Language))
}

type encodedHello struct{}

func (encodedHello) Name() string { return StrategyEncoded }

func (encodedHello) IsApplicable(c HelloContext) bool {
	return c.FormalityLevel >= 4
}

func (encodedHello) Produce(c HelloContext) string {
	return base64.StdEncoding.EncodeToString([]byte(helloWord(c.Language)))
}

// HelloStrategies returns the hello family in enumeration order
func HelloStrategies() []Strategy[HelloContext] {
	return []Strategy[HelloContext]{standardHello{}, reversedHello{}, encodedHello{}}
}

// HelloPriority ranks the hello family, highest first
var HelloPriority = []string{StrategyEncoded, StrategyReversed, StrategyStandard}

// NewHelloSelector returns the selector for the hello family
func NewHelloSelector() *Selector[HelloContext] {
	return MustSelector(FamilyHello, HelloStrategies(), HelloPriority, StrategyStandard)
}

// Reverse reverses s by runes so multi-byte characters stay intact
func Reverse(s string) string {
	runes := []rune(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes)
}
