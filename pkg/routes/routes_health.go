package routes

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/navikt/asset-query-converter/pkg/handlers"
	"github.com/navikt/asset-query-converter/pkg/transport"
	"github.com/rs/zerolog"
)

type HealthEndpoints struct {
	GetHealth http.HandlerFunc
}

func NewHealthEndpoints(log zerolog.Logger, h *handlers.HealthHandler) *HealthEndpoints {
	return &HealthEndpoints{
		GetHealth: transport.For(h.Health).Build(log),
	}
}

func NewHealthRoutes(endpoints *HealthEndpoints) AddRoutesFn {
	return func(router chi.Router) {
		router.Get("/internal/health", endpoints.GetHealth)
	}
}
