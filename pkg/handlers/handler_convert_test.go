package handlers_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/goccy/go-json"
	"github.com/navikt/asset-query-converter/pkg/converter"
	"github.com/navikt/asset-query-converter/pkg/errs"
	"github.com/navikt/asset-query-converter/pkg/handlers"
	"github.com/navikt/asset-query-converter/pkg/transport"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConvertHandler(t *testing.T) (http.HandlerFunc, *handlers.Metrics) {
	t.Helper()

	metrics := handlers.NewMetrics()
	h := handlers.NewHandlers(converter.New(converter.WireRegistry()), metrics)

	return transport.For(h.ConvertHandler.Convert).RequestFromJSON(0).Build(zerolog.Nop()), metrics
}

func TestConvertHandler_Convert(t *testing.T) {
	t.Parallel()

	body, err := os.ReadFile("testdata/query-result.json")
	require.NoError(t, err)

	testCases := []struct {
		name   string
		target string
		golden string
	}{
		{
			name:   "compact",
			target: "/api/convert",
			golden: "convert",
		},
		{
			name:   "pretty",
			target: "/api/convert?pretty=true",
			golden: "convert-pretty",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			handler, metrics := newConvertHandler(t)

			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, tc.target, bytes.NewReader(body)))

			require.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, "application/json; charset=utf-8", rr.Header().Get("Content-Type"))
			assert.Equal(t, 2.0, testutil.ToFloat64(metrics.RowsConverted))

			g := goldie.New(t)
			g.Assert(t, tc.golden, rr.Body.Bytes())
		})
	}
}

func TestConvertHandler_ConvertErrors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		target string
		body   string
		status int
		kind   errs.Kind
		param  string
	}{
		{
			name:   "arity mismatch",
			target: "/api/convert",
			body: `{"done": true, "queryResult": {
				"schema": {"fields": [{"field": "a", "type": "STRING"}, {"field": "b", "type": "STRING"}]},
				"rows": [{"f": [{"v": "1"}, {"v": "2"}]}, {"f": [{"v": "1"}]}]
			}}`,
			status: http.StatusBadRequest,
			kind:   errs.SchemaMismatch,
			param:  "row",
		},
		{
			name:   "decode failure",
			target: "/api/convert",
			body: `{"done": true, "queryResult": {
				"schema": {"fields": [{"field": "n", "type": "INTEGER"}]},
				"rows": [{"f": [{"v": "twelve"}]}]
			}}`,
			status: http.StatusBadRequest,
			kind:   errs.Decode,
			param:  "n",
		},
		{
			name:   "unknown type",
			target: "/api/convert",
			body: `{"done": true, "queryResult": {
				"schema": {"fields": [{"field": "n", "type": "RANGE"}]},
				"rows": []
			}}`,
			status: http.StatusBadRequest,
			kind:   errs.Schema,
		},
		{
			name:   "failed job",
			target: "/api/convert",
			body:   `{"done": true, "error": {"code": 3, "message": "Unrecognized name: nope"}}`,
			status: http.StatusBadRequest,
			kind:   errs.Invalid,
			param:  "error",
		},
		{
			name:   "invalid pretty flag",
			target: "/api/convert?pretty=maybe",
			body:   `{"done": true, "queryResult": {"schema": {"fields": []}, "rows": []}}`,
			status: http.StatusBadRequest,
			kind:   errs.InvalidRequest,
			param:  "pretty",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			handler, metrics := newConvertHandler(t)

			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, tc.target, bytes.NewBufferString(tc.body)))

			require.Equal(t, tc.status, rr.Code)

			got := errs.ErrorResponse{}
			err := json.Unmarshal(rr.Body.Bytes(), &got)
			require.NoError(t, err)

			assert.Equal(t, tc.kind.String(), got.Error.Kind)
			assert.Equal(t, tc.param, got.Error.Param)
			assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ConversionErrors.WithLabelValues(tc.kind.String())))
			assert.Equal(t, 0.0, testutil.ToFloat64(metrics.RowsConverted))
		})
	}
}

func TestHealthHandler_Health(t *testing.T) {
	t.Parallel()

	h := handlers.NewHandlers(converter.New(nil), handlers.NewMetrics())

	rr := httptest.NewRecorder()
	transport.For(h.HealthHandler.Health).Build(zerolog.Nop()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/internal/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status": "ok"}`, rr.Body.String())
}

const nonFiniteBody = `{"done": true, "queryResult": {
	"schema": {"fields": [{"field": "ratio", "type": "FLOAT"}, {"field": "samples", "mode": "REPEATED", "type": "FLOAT"}]},
	"rows": [{"f": [{"v": "NaN"}, {"v": [{"v": "Infinity"}, {"v": "-Infinity"}]}]}],
	"totalRows": "1"
}}`

func TestConvertHandler_ConvertNonFiniteFloats(t *testing.T) {
	t.Parallel()

	handler, metrics := newConvertHandler(t)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/convert", bytes.NewBufferString(nonFiniteBody)))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"rows": [{"ratio": "NaN", "samples": ["Infinity", "-Infinity"]}], "totalRows": 1}`, rr.Body.String())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RowsConverted))
}

func TestConvertHandler_ConvertUnencodableResult(t *testing.T) {
	t.Parallel()

	metrics := handlers.NewMetrics()
	h := handlers.NewHandlers(converter.New(converter.NativeRegistry()), metrics)
	handler := transport.For(h.ConvertHandler.Convert).RequestFromJSON(0).Build(zerolog.Nop())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/convert", bytes.NewBufferString(nonFiniteBody)))

	require.Equal(t, http.StatusInternalServerError, rr.Code)

	got := errs.ErrorResponse{}
	err := json.Unmarshal(rr.Body.Bytes(), &got)
	require.NoError(t, err)

	assert.Equal(t, errs.Internal.String(), got.Error.Kind)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ConversionErrors.WithLabelValues(errs.Internal.String())))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.RowsConverted))
}
