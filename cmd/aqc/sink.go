package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"

	"github.com/navikt/asset-query-converter/pkg/config"
	"github.com/navikt/asset-query-converter/pkg/cs"
	"github.com/navikt/asset-query-converter/pkg/errs"
)

// sink writes the converted rows to stdout, a file or a Cloud Storage
// object.
type sink struct {
	cfg    config.Config
	stdout io.Writer
}

func (s *sink) Write(ctx context.Context, target string, data []byte) error {
	const op errs.Op = "sink.Write"

	switch {
	case target == stdio:
		_, err := s.stdout.Write(data)
		if err != nil {
			return errs.E(errs.IO, op, errs.Parameter("output"), err)
		}
	case cs.IsURL(target):
		u, err := cs.ParseURL(target)
		if err != nil {
			return errs.E(errs.InvalidRequest, op, errs.Parameter("output"), err)
		}

		if u.IsPrefix() {
			return errs.E(errs.InvalidRequest, op, errs.Parameter("output"), "output must name an object, not a prefix")
		}

		client, err := cs.New(ctx, u.Bucket, cs.Options(s.cfg.GCS.Endpoint, s.cfg.GCS.EnableAuth)...)
		if err != nil {
			return errs.E(errs.IO, op, err)
		}
		defer client.Close()

		err = client.WriteObject(ctx, u.Object, bytes.NewReader(data), &cs.Attributes{
			ContentType: "application/json",
		})
		if err != nil {
			return errs.E(storageKind(err), op, errs.Parameter(target), err)
		}
	default:
		err := os.WriteFile(target, data, 0o644)
		if err != nil {
			return errs.E(errs.IO, op, errs.Parameter("output"), err)
		}
	}

	return nil
}

func storageKind(err error) errs.Kind {
	if errors.Is(err, cs.ErrObjectNotExist) || errors.Is(err, cs.ErrBucketNotExist) {
		return errs.NotExist
	}

	return errs.IO
}
