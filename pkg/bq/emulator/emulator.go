// Package emulator runs a local BigQuery emulator, for tests and for
// developing against query results without a GCP project.
package emulator

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httputil"

	"github.com/go-chi/chi"
	"github.com/goccy/bigquery-emulator/server"
	"github.com/goccy/bigquery-emulator/types"
	"github.com/rs/zerolog"
)

type Emulator struct {
	testServer *server.TestServer
	emulator   *server.Server
	log        zerolog.Logger
}

type EndpointMock struct {
	Path    string
	Method  string
	Handler http.HandlerFunc
}

type Dataset struct {
	DatasetID string
	TableID   string
	Columns   []*types.Column
	Data      types.Data
}

func Column(name string, typ types.Type, mode types.Mode) *types.Column {
	return &types.Column{
		Name: name,
		Type: typ,
		Mode: mode,
	}
}

func ColumnNullable(name string) *types.Column {
	return Column(name, types.STRING, types.NullableMode)
}

func ColumnRepeated(name string) *types.Column {
	return Column(name, types.STRING, types.RepeatedMode)
}

// EnableMock routes the given endpoints to their mock handlers and forwards
// everything else to the emulator. With debugRequest set, every request is
// dumped to the log.
func (e *Emulator) EnableMock(debugRequest bool, mocks ...*EndpointMock) {
	handler := e.emulator.Handler

	router := chi.NewRouter()

	dump := func(r *http.Request) {
		if !debugRequest {
			return
		}

		request, err := httputil.DumpRequest(r, true)
		if err != nil {
			e.log.Error().Err(err).Msg("dumping request")
			return
		}

		e.log.Debug().Msg(string(request))
	}

	for _, mock := range mocks {
		e.log.Info().Msgf("adding mock endpoint: %s %s", mock.Method, mock.Path)

		router.MethodFunc(mock.Method, mock.Path, func(w http.ResponseWriter, r *http.Request) {
			dump(r)
			mock.Handler(w, r)
		})
	}

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		dump(r)
		handler.ServeHTTP(w, r)
	})

	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		dump(r)
		handler.ServeHTTP(w, r)
	})

	e.emulator.Handler = router

	if e.testServer != nil {
		e.testServer.Close()
		e.testServer = e.emulator.TestServer()
	}
}

// TestServer starts serving the emulator on a random local port.
func (e *Emulator) TestServer() {
	if e.testServer != nil {
		e.testServer.Close()
	}

	e.testServer = e.emulator.TestServer()
}

// Serve blocks, serving the HTTP API on httpAddr and the gRPC API on
// grpcAddr.
func (e *Emulator) Serve(ctx context.Context, httpAddr, grpcAddr string) error {
	err := e.emulator.Serve(ctx, httpAddr, grpcAddr)
	if err != nil {
		return fmt.Errorf("serving bigquery emulator: %w", err)
	}

	return nil
}

func (e *Emulator) Cleanup() {
	if e.testServer != nil {
		e.testServer.Close()
	}

	err := e.emulator.Stop(context.Background())
	if err != nil {
		e.log.Error().Err(err).Msg("stopping bigquery emulator")
	}
}

func (e *Emulator) Endpoint() string {
	if e.testServer == nil {
		return ""
	}

	return e.testServer.URL
}

func (e *Emulator) WithProject(projectID string, datasets ...*Dataset) error {
	p := &types.Project{
		ID: projectID,
	}

	for _, ds := range datasets {
		if ds == nil {
			continue
		}

		d := &types.Dataset{
			ID: ds.DatasetID,
		}

		if ds.TableID != "" {
			d.Tables = append(d.Tables, &types.Table{
				ID:      ds.TableID,
				Columns: ds.Columns,
				Data:    ds.Data,
			})
		}

		p.Datasets = append(p.Datasets, d)
	}

	return e.WithSource(p.ID, server.StructSource(p))
}

func (e *Emulator) WithSource(projectID string, source server.Source) error {
	err := e.emulator.Load(source)
	if err != nil {
		return fmt.Errorf("loading bigquery emulator source: %w", err)
	}

	err = e.emulator.SetProject(projectID)
	if err != nil {
		return fmt.Errorf("setting project %s: %w", projectID, err)
	}

	return nil
}

func New(log zerolog.Logger) (*Emulator, error) {
	s, err := server.New(server.TempStorage)
	if err != nil {
		return nil, fmt.Errorf("creating bigquery emulator: %w", err)
	}

	return &Emulator{
		emulator: s,
		log:      log,
	}, nil
}
