// Package bq pulls query results out of BigQuery in the same positional
// {"f": [{"v": ...}]} row encoding that the Cloud Asset Inventory API uses,
// so they can be fed to the converter.
package bq

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goccy/go-json"
	"github.com/lithammer/shortuuid/v4"
	"github.com/navikt/asset-query-converter/pkg/errs"
	"github.com/navikt/asset-query-converter/pkg/queryresult"
	"github.com/rs/zerolog"
	bqv2 "google.golang.org/api/bigquery/v2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// JobIDPrefix is prepended to the ID of every job the client starts.
const JobIDPrefix = "aqc_"

// ResultsPollInterval is the wait between getQueryResults calls while the
// job is still running.
const ResultsPollInterval = time.Second

var _ Operations = &Client{}

type Operations interface {
	Query(ctx context.Context, query *Query) iter.Seq2[*queryresult.QueryResult, error]
}

type Client struct {
	endpoint             string
	enableAuthentication bool
	log                  zerolog.Logger
}

type Query struct {
	ProjectID string
	SQL       string
	Location  string
	PageSize  int64
}

func (q Query) Validate() error {
	return validation.ValidateStruct(&q,
		validation.Field(&q.ProjectID, validation.Required),
		validation.Field(&q.SQL, validation.Required),
		validation.Field(&q.PageSize, validation.Min(int64(0))),
	)
}

// Query runs the query as a job, waits for it to finish and yields the
// result one page at a time.
func (c *Client) Query(ctx context.Context, query *Query) iter.Seq2[*queryresult.QueryResult, error] {
	const op errs.Op = "bq.Query"

	return func(yield func(*queryresult.QueryResult, error) bool) {
		if query == nil {
			yield(nil, errs.E(errs.InvalidRequest, op, "missing query"))
			return
		}

		err := query.Validate()
		if err != nil {
			yield(nil, errs.E(errs.InvalidRequest, op, err))
			return
		}

		job, fallback, err := c.runAndWait(ctx, query)
		if err != nil {
			yield(nil, errs.E(op, err))
			return
		}

		svc, err := c.serviceFromProject(ctx)
		if err != nil {
			yield(nil, errs.E(errs.IO, op, err))
			return
		}

		var (
			token  string
			schema *queryresult.RawSchema
		)

		for {
			call := svc.Jobs.GetQueryResults(job.ProjectID(), job.ID()).Context(ctx)

			if job.Location() != "" {
				call = call.Location(job.Location())
			}

			if query.PageSize > 0 {
				call = call.MaxResults(query.PageSize)
			}

			if token != "" {
				call = call.PageToken(token)
			}

			resp, err := call.Do()
			if err != nil {
				yield(nil, errs.E(op, fromGoogleAPI(err, job.ID())))
				return
			}

			if !resp.JobComplete {
				c.log.Debug().Str("job", job.ID()).Msg("job not complete, polling results again")

				err = sleep(ctx, ResultsPollInterval)
				if err != nil {
					yield(nil, errs.E(errs.IO, op, err))
					return
				}

				continue
			}

			if resp.Schema != nil {
				schema = rawSchema(resp.Schema.Fields)
			}

			if schema == nil {
				schema = fallback
			}

			rows, err := decodeRows(resp.Rows)
			if err != nil {
				yield(nil, errs.E(errs.IO, op, err))
				return
			}

			c.log.Debug().
				Str("job", job.ID()).
				Int("rows", len(rows)).
				Str("page_token", resp.PageToken).
				Msg("fetched query results page")

			page := &queryresult.QueryResult{
				Rows:          rows,
				Schema:        schema,
				NextPageToken: resp.PageToken,
				TotalRows:     queryresult.Int64String(resp.TotalRows),
			}

			if !yield(page, nil) {
				return
			}

			if resp.PageToken == "" {
				return
			}

			token = resp.PageToken
		}
	}
}

func (c *Client) runAndWait(ctx context.Context, query *Query) (*bigquery.Job, *queryresult.RawSchema, error) {
	client, err := c.clientFromProject(ctx, query.ProjectID)
	if err != nil {
		return nil, nil, errs.E(errs.IO, err)
	}
	defer client.Close()

	q := client.Query(query.SQL)
	q.JobIDConfig.JobID = JobIDPrefix + shortuuid.New()
	q.JobIDConfig.Location = query.Location

	job, err := q.Run(ctx)
	if err != nil {
		return nil, nil, fromGoogleAPI(fmt.Errorf("running query: %w", err), q.JobIDConfig.JobID)
	}

	c.log.Info().Str("job", job.ID()).Str("project", query.ProjectID).Msg("started query job")

	status, err := job.Wait(ctx)
	if err != nil {
		return nil, nil, fromGoogleAPI(fmt.Errorf("waiting for query: %w", err), job.ID())
	}

	err = status.Err()
	if err != nil {
		return nil, nil, errs.E(errs.InvalidRequest, fmt.Errorf("query failed: %w", err))
	}

	var fallback *queryresult.RawSchema

	if status.Statistics != nil {
		if details, ok := status.Statistics.Details.(*bigquery.QueryStatistics); ok && len(details.Schema) > 0 {
			fallback = &queryresult.RawSchema{Fields: rawFieldsFromFieldSchema(details.Schema)}
		}
	}

	return job, fallback, nil
}

// SchemaFromFieldSchema maps the schema of the BigQuery client library onto
// the query result schema.
func SchemaFromFieldSchema(schema bigquery.Schema) (queryresult.Schema, error) {
	return queryresult.LoadSchema(&queryresult.RawSchema{
		Fields: rawFieldsFromFieldSchema(schema),
	})
}

func rawFieldsFromFieldSchema(fields bigquery.Schema) []*queryresult.RawField {
	if len(fields) == 0 {
		return nil
	}

	out := make([]*queryresult.RawField, len(fields))

	for i, f := range fields {
		mode := queryresult.NullableMode

		if f.Repeated {
			mode = queryresult.RepeatedMode
		}

		if f.Required && !f.Repeated {
			mode = queryresult.RequiredMode
		}

		out[i] = &queryresult.RawField{
			Field:  f.Name,
			Mode:   string(mode),
			Type:   normalizeType(string(f.Type)),
			Fields: rawFieldsFromFieldSchema(f.Schema),
		}
	}

	return out
}

func rawSchema(fields []*bqv2.TableFieldSchema) *queryresult.RawSchema {
	return &queryresult.RawSchema{
		Fields: rawFields(fields),
	}
}

func rawFields(fields []*bqv2.TableFieldSchema) []*queryresult.RawField {
	if len(fields) == 0 {
		return nil
	}

	out := make([]*queryresult.RawField, len(fields))

	for i, f := range fields {
		out[i] = &queryresult.RawField{
			Field:  f.Name,
			Mode:   f.Mode,
			Type:   normalizeType(f.Type),
			Fields: rawFields(f.Fields),
		}
	}

	return out
}

// normalizeType maps the GoogleSQL type names onto the legacy names used in
// query result schemas.
func normalizeType(t string) string {
	switch strings.ToUpper(t) {
	case "INT64":
		return string(queryresult.IntegerFieldType)
	case "FLOAT64":
		return string(queryresult.FloatFieldType)
	case "BOOL":
		return string(queryresult.BooleanFieldType)
	case "STRUCT":
		return string(queryresult.RecordFieldType)
	case "DECIMAL":
		return string(queryresult.NumericFieldType)
	case "BIGDECIMAL":
		return string(queryresult.BigNumericFieldType)
	}

	return strings.ToUpper(t)
}

func decodeRows(rows []*bqv2.TableRow) ([]*queryresult.Row, error) {
	out := []*queryresult.Row{}

	if len(rows) == 0 {
		return out, nil
	}

	data, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("encoding table rows: %w", err)
	}

	err = json.Unmarshal(data, &out)
	if err != nil {
		return nil, fmt.Errorf("decoding table rows: %w", err)
	}

	return out, nil
}

func fromGoogleAPI(err error, jobID string) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusNotFound:
			return errs.E(errs.NotExist, errs.Parameter(jobID), err)
		case http.StatusBadRequest:
			return errs.E(errs.InvalidRequest, errs.Parameter(jobID), err)
		case http.StatusUnauthorized, http.StatusForbidden:
			return errs.E(errs.Unauthenticated, errs.Parameter(jobID), err)
		}
	}

	return errs.E(errs.IO, errs.Parameter(jobID), err)
}

func (c *Client) options() []option.ClientOption {
	var options []option.ClientOption

	if c.endpoint != "" {
		options = append(options, option.WithEndpoint(c.endpoint))
	}

	if !c.enableAuthentication {
		options = append(options, option.WithoutAuthentication())
	}

	return options
}

func (c *Client) clientFromProject(ctx context.Context, project string) (*bigquery.Client, error) {
	client, err := bigquery.NewClient(ctx, project, c.options()...)
	if err != nil {
		return nil, fmt.Errorf("creating bigquery client for project %s: %w", project, err)
	}

	return client, nil
}

func (c *Client) serviceFromProject(ctx context.Context) (*bqv2.Service, error) {
	svc, err := bqv2.NewService(ctx, c.options()...)
	if err != nil {
		return nil, fmt.Errorf("creating bigquery service: %w", err)
	}

	return svc, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func NewClient(endpoint string, enableAuthentication bool, log zerolog.Logger) *Client {
	return &Client{
		endpoint:             endpoint,
		enableAuthentication: enableAuthentication,
		log:                  log,
	}
}
