package api

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/NikhilSetiya/hello-world-aggregator/internal/aggregator"
	"github.com/NikhilSetiya/hello-world-aggregator/internal/fragment"
	"github.com/NikhilSetiya/hello-world-aggregator/pkg/metrics"
	"github.com/NikhilSetiya/hello-world-aggregator/pkg/types"
)

// HelloQuery is the query string of the greeting endpoint
type HelloQuery struct {
	Language       string `form:"language" binding:"omitempty,alpha,min=2,max=8"`
	FormalityLevel int    `form:"formalityLevel" binding:"omitempty,min=1,max=5"`
}

// WorldQuery is the query string of the world endpoint
type WorldQuery struct {
	Language   string `form:"language" binding:"omitempty,alpha,min=2,max=8"`
	PlanetType string `form:"planetType" binding:"omitempty,oneof=EARTH MARS VENUS JUPITER SATURN NEPTUNE URANUS MERCURY PLUTO"`
	Scope      string `form:"scope" binding:"omitempty,oneof=GLOBAL CONTINENTAL REGIONAL NATIONAL LOCAL"`
}

// FragmentHandler serves one strategy family over HTTP
type FragmentHandler struct {
	hello   *fragment.Generator[fragment.HelloContext]
	world   *fragment.Generator[fragment.WorldContext]
	metrics *metrics.Metrics
}

// NewHelloHandler creates the greeting service handler
func NewHelloHandler(gen *fragment.Generator[fragment.HelloContext], m *metrics.Metrics) *FragmentHandler {
	return &FragmentHandler{hello: gen, metrics: m}
}

// NewWorldHandler creates the world service handler
func NewWorldHandler(gen *fragment.Generator[fragment.WorldContext], m *metrics.Metrics) *FragmentHandler {
	return &FragmentHandler{world: gen, metrics: m}
}

// GenerateHello produces a greeting fragment
func (h *FragmentHandler) GenerateHello(c *gin.Context) {
	var q HelloQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		ErrorResponseFromError(c, aggregator.ValidationError(err))
		return
	}

	hc := fragment.HelloContext{
		Language:       languageOrDefault(q.Language),
		FormalityLevel: q.FormalityLevel,
	}
	if hc.FormalityLevel == 0 {
		hc.FormalityLevel = types.DefaultFormality
	}

	frag := h.hello.Generate(c.Request.Context(), hc)
	h.record(fragment.FamilyHello, frag)

	SuccessResponse(c, types.FragmentResponse{
		Text:           frag.Text,
		Strategy:       frag.Strategy,
		Language:       hc.Language,
		FormalityLevel: hc.FormalityLevel,
	})
}

// GenerateWorld produces a world fragment
func (h *FragmentHandler) GenerateWorld(c *gin.Context) {
	var q WorldQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		ErrorResponseFromError(c, aggregator.ValidationError(err))
		return
	}

	wc := fragment.WorldContext{
		Language:   languageOrDefault(q.Language),
		PlanetType: types.PlanetType(q.PlanetType),
		Scope:      types.GeographicalScope(q.Scope),
	}
	if wc.PlanetType == "" {
		wc.PlanetType = types.PlanetEarth
	}

	frag := h.world.Generate(c.Request.Context(), wc)
	h.record(fragment.FamilyWorld, frag)

	SuccessResponse(c, types.FragmentResponse{
		Text:       frag.Text,
		Strategy:   frag.Strategy,
		Language:   wc.Language,
		PlanetType: string(wc.PlanetType),
		Scope:      string(wc.Scope),
	})
}

func (h *FragmentHandler) record(family string, frag fragment.Fragment) {
	if h.metrics != nil {
		h.metrics.RecordFragment(family, frag.Strategy)
	}
}

func languageOrDefault(language string) string {
	language = strings.ToLower(strings.TrimSpace(language))
	if language == "" {
		return types.DefaultLanguage
	}
	return language
}
