package routes

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/navikt/asset-query-converter/pkg/handlers"
	"github.com/navikt/asset-query-converter/pkg/transport"
	"github.com/rs/zerolog"
)

// MaxRequestBytes bounds the size of a queryAssets response posted for
// conversion.
const MaxRequestBytes = 32 << 20

type ConvertEndpoints struct {
	Convert http.HandlerFunc
}

func NewConvertEndpoints(log zerolog.Logger, h *handlers.ConvertHandler) *ConvertEndpoints {
	return &ConvertEndpoints{
		Convert: transport.For(h.Convert).RequestFromJSON(MaxRequestBytes).Build(log),
	}
}

func NewConvertRoutes(endpoints *ConvertEndpoints) AddRoutesFn {
	return func(router chi.Router) {
		router.Route("/api/convert", func(r chi.Router) {
			r.Post("/", endpoints.Convert)
		})
	}
}
