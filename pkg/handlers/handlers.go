// Package handlers implements the endpoints of the HTTP service on top of
// the converter.
package handlers

import (
	"github.com/navikt/asset-query-converter/pkg/converter"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "asset_query_converter"

type Handlers struct {
	ConvertHandler *ConvertHandler
	HealthHandler  *HealthHandler
}

func NewHandlers(conv *converter.Converter, metrics *Metrics) *Handlers {
	return &Handlers{
		ConvertHandler: NewConvertHandler(conv, metrics),
		HealthHandler:  &HealthHandler{},
	}
}

type Metrics struct {
	RowsConverted    prometheus.Counter
	ConversionErrors *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		RowsConverted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_converted_total",
			Help:      "Number of query result rows converted to objects.",
		}),
		ConversionErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversion_errors_total",
			Help:      "Number of failed conversions by error kind.",
		}, []string{"kind"}),
	}
}

func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.RowsConverted,
		m.ConversionErrors,
	}
}
