package handlers

import (
	"bytes"
	"context"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/navikt/asset-query-converter/pkg/converter"
	"github.com/navikt/asset-query-converter/pkg/errs"
	"github.com/navikt/asset-query-converter/pkg/queryresult"
	"github.com/navikt/asset-query-converter/pkg/transport"
)

type ConvertHandler struct {
	converter *converter.Converter
	metrics   *Metrics
}

type ConvertResponse struct {
	Rows          []converter.Object `json:"rows"`
	TotalRows     int64              `json:"totalRows"`
	NextPageToken string             `json:"nextPageToken,omitempty"`
}

func (c *ConvertResponse) marshal(pretty bool) ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}

	if pretty {
		buf := &bytes.Buffer{}

		err = json.Indent(buf, data, "", "  ")
		if err != nil {
			return nil, err
		}

		data = buf.Bytes()
	}

	return append(data, '\n'), nil
}

// Convert turns the rows of a queryAssets response into objects. The
// response is all or nothing: the first row that fails to convert, or a
// result that cannot be written as JSON, fails the request.
func (h *ConvertHandler) Convert(_ context.Context, r *http.Request, in queryresult.Response) (*transport.ByteWriter, error) {
	const op errs.Op = "ConvertHandler.Convert"

	pretty, err := parseBool(r.URL.Query().Get("pretty"))
	if err != nil {
		return nil, h.failed(errs.E(errs.InvalidRequest, op, errs.Parameter("pretty"), err))
	}

	qr, err := in.Result()
	if err != nil {
		return nil, h.failed(errs.E(op, err))
	}

	objects, err := converter.Collect(h.converter.QueryResult(qr))
	if err != nil {
		return nil, h.failed(errs.E(op, err))
	}

	resp := &ConvertResponse{
		Rows:          objects,
		TotalRows:     int64(qr.TotalRows),
		NextPageToken: qr.NextPageToken,
	}

	data, err := resp.marshal(pretty)
	if err != nil {
		return nil, h.failed(errs.E(errs.Internal, op, err))
	}

	h.metrics.RowsConverted.Add(float64(len(objects)))

	return transport.NewByteWriter("application/json; charset=utf-8", data), nil
}

func (h *ConvertHandler) failed(err error) error {
	h.metrics.ConversionErrors.WithLabelValues(errs.KindOf(err).String()).Inc()

	return err
}

func parseBool(s string) (bool, error) {
	if s == "" {
		return false, nil
	}

	return strconv.ParseBool(s)
}

func NewConvertHandler(conv *converter.Converter, metrics *Metrics) *ConvertHandler {
	return &ConvertHandler{
		converter: conv,
		metrics:   metrics,
	}
}
