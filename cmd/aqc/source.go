package main

import (
	"context"
	"io"
	"iter"
	"os"

	"github.com/navikt/asset-query-converter/pkg/bq"
	"github.com/navikt/asset-query-converter/pkg/ca"
	"github.com/navikt/asset-query-converter/pkg/config"
	"github.com/navikt/asset-query-converter/pkg/cs"
	"github.com/navikt/asset-query-converter/pkg/errs"
	"github.com/navikt/asset-query-converter/pkg/queryresult"
	"github.com/rs/zerolog"
)

const stdio = "-"

// source yields the pages of the query result to convert, from the Cloud
// Asset API, from BigQuery or from saved queryAssets responses.
type source struct {
	cfg   config.Config
	opts  *options
	stdin io.Reader
	log   zerolog.Logger
}

func (s *source) Pages(ctx context.Context) iter.Seq2[*queryresult.QueryResult, error] {
	switch {
	case s.opts.Statement != "":
		client := ca.NewClient(
			s.cfg.CloudAsset.Endpoint,
			s.cfg.CloudAsset.EnableAuth,
			s.cfg.CloudAsset.CredentialsFile,
			s.cfg.CloudAsset.PollInterval(),
			s.log.With().Str("subsystem", "cloudasset").Logger(),
		)

		return client.Pages(ctx, s.opts.Parent, &ca.Query{
			Statement: s.opts.Statement,
			PageSize:  s.cfg.CloudAsset.PageSize,
		})
	case s.opts.BigQueryQuery != "":
		client := bq.NewClient(
			s.cfg.BigQuery.Endpoint,
			s.cfg.BigQuery.EnableAuth,
			s.log.With().Str("subsystem", "bigquery").Logger(),
		)

		return client.Query(ctx, &bq.Query{
			ProjectID: s.opts.Project,
			SQL:       s.opts.BigQueryQuery,
			Location:  s.cfg.BigQuery.Location,
			PageSize:  s.cfg.CloudAsset.PageSize,
		})
	case cs.IsURL(s.opts.Input):
		return s.objects(ctx, s.opts.Input)
	default:
		return s.file(s.opts.Input)
	}
}

func (s *source) file(path string) iter.Seq2[*queryresult.QueryResult, error] {
	const op errs.Op = "source.file"

	return func(yield func(*queryresult.QueryResult, error) bool) {
		var data []byte
		var err error

		name := path

		if path == stdio {
			name = "stdin"
			data, err = io.ReadAll(s.stdin)
		} else {
			data, err = os.ReadFile(path)
		}

		if err != nil {
			yield(nil, errs.E(errs.IO, op, errs.Parameter("input"), err))
			return
		}

		yield(result(op, name, data))
	}
}

// objects reads a single object, or every object under a prefix in name
// order, each holding one queryAssets response.
func (s *source) objects(ctx context.Context, raw string) iter.Seq2[*queryresult.QueryResult, error] {
	const op errs.Op = "source.objects"

	return func(yield func(*queryresult.QueryResult, error) bool) {
		u, err := cs.ParseURL(raw)
		if err != nil {
			yield(nil, errs.E(errs.InvalidRequest, op, errs.Parameter("input"), err))
			return
		}

		client, err := cs.New(ctx, u.Bucket, cs.Options(s.cfg.GCS.Endpoint, s.cfg.GCS.EnableAuth)...)
		if err != nil {
			yield(nil, errs.E(errs.IO, op, err))
			return
		}
		defer client.Close()

		names := []string{u.Object}

		if u.IsPrefix() {
			objects, err := client.GetObjects(ctx, &cs.Query{Prefix: u.Object})
			if err != nil {
				yield(nil, errs.E(storageKind(err), op, errs.Parameter(raw), err))
				return
			}

			if len(objects) == 0 {
				yield(nil, errs.E(errs.NotExist, op, errs.Parameter(raw), "no objects under prefix"))
				return
			}

			names = names[:0]
			for _, obj := range objects {
				names = append(names, obj.Name)
			}
		}

		for _, name := range names {
			obj, err := client.GetObjectWithData(ctx, name)
			if err != nil {
				yield(nil, errs.E(storageKind(err), op, errs.Parameter((&cs.URL{Bucket: u.Bucket, Object: name}).String()), err))
				return
			}

			s.log.Debug().Str("object", name).Int64("size", obj.Attrs.Size).Msg("read query response")

			if !yield(result(op, name, obj.Data)) {
				return
			}
		}
	}
}

func result(op errs.Op, name string, data []byte) (*queryresult.QueryResult, error) {
	response, err := queryresult.ParseResponse(data)
	if err != nil {
		return nil, errs.E(errs.Invalid, op, errs.Parameter(name), err)
	}

	qr, err := response.Result()
	if err != nil {
		return nil, errs.E(op, err)
	}

	return qr, nil
}
