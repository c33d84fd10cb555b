// Package ca runs Cloud Asset Inventory queries through the queryAssets API
// and returns the raw, positionally encoded results.
package ca

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"os"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goccy/go-json"
	"github.com/navikt/asset-query-converter/pkg/errs"
	"github.com/navikt/asset-query-converter/pkg/queryresult"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/cloudasset/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const DefaultPollInterval = 2 * time.Second

var parentPattern = regexp.MustCompile(`^(projects|folders|organizations)/[^/]+$`)

var _ Operations = &Client{}

type Operations interface {
	QueryAssets(ctx context.Context, parent string, query *Query) (*queryresult.Response, error)
	Pages(ctx context.Context, parent string, query *Query) iter.Seq2[*queryresult.QueryResult, error]
}

type Client struct {
	endpoint             string
	enableAuthentication bool
	credentialsFile      string
	pollInterval         time.Duration
	log                  zerolog.Logger
}

// Query is a single queryAssets request. The first request of a query
// carries the Statement, follow-up requests carry the JobReference of the
// first response instead.
type Query struct {
	Statement    string
	PageSize     int64
	PageToken    string
	JobReference string
	Timeout      time.Duration
}

func (q Query) Validate() error {
	return validation.ValidateStruct(&q,
		validation.Field(&q.Statement, validation.Required.When(q.JobReference == "").Error("statement or job reference is required")),
		validation.Field(&q.PageSize, validation.Min(int64(0))),
		validation.Field(&q.Timeout, validation.Min(time.Duration(0))),
	)
}

func validateParent(parent string) error {
	return validation.Validate(parent,
		validation.Required,
		validation.Match(parentPattern).Error("must be projects/<id>, folders/<id> or organizations/<id>"),
	)
}

// QueryAssets issues a single queryAssets call.
func (c *Client) QueryAssets(ctx context.Context, parent string, query *Query) (*queryresult.Response, error) {
	const op errs.Op = "ca.QueryAssets"

	err := validateParent(parent)
	if err != nil {
		return nil, errs.E(errs.InvalidRequest, op, errs.Parameter("parent"), err)
	}

	if query == nil {
		return nil, errs.E(errs.InvalidRequest, op, "missing query")
	}

	err = query.Validate()
	if err != nil {
		return nil, errs.E(errs.InvalidRequest, op, err)
	}

	svc, err := c.service(ctx)
	if err != nil {
		return nil, errs.E(op, err)
	}

	resp, err := c.queryAssets(ctx, svc, parent, query)
	if err != nil {
		return nil, errs.E(op, err)
	}

	return resp, nil
}

// Pages runs the query to completion and yields every page of the result.
// While the query job is running the API is polled every poll interval.
// Pages without a schema reuse the schema of the first page.
func (c *Client) Pages(ctx context.Context, parent string, query *Query) iter.Seq2[*queryresult.QueryResult, error] {
	const op errs.Op = "ca.Pages"

	return func(yield func(*queryresult.QueryResult, error) bool) {
		err := validateParent(parent)
		if err != nil {
			yield(nil, errs.E(errs.InvalidRequest, op, errs.Parameter("parent"), err))
			return
		}

		if query == nil {
			yield(nil, errs.E(errs.InvalidRequest, op, "missing query"))
			return
		}

		err = query.Validate()
		if err != nil {
			yield(nil, errs.E(errs.InvalidRequest, op, err))
			return
		}

		svc, err := c.service(ctx)
		if err != nil {
			yield(nil, errs.E(op, err))
			return
		}

		next := *query

		var schema *queryresult.RawSchema

		for {
			resp, err := c.queryAssets(ctx, svc, parent, &next)
			if err != nil {
				yield(nil, errs.E(op, err))
				return
			}

			if resp.JobReference != "" {
				next.JobReference = resp.JobReference
				next.Statement = ""
			}

			if !resp.Done {
				c.log.Debug().Str("job", resp.JobReference).Msg("query not done, polling again")

				err = sleep(ctx, c.pollInterval)
				if err != nil {
					yield(nil, errs.E(errs.IO, op, err))
					return
				}

				continue
			}

			page := resp.QueryResult
			if page == nil {
				page = &queryresult.QueryResult{}
			}

			if page.Schema == nil {
				page.Schema = schema
			}

			schema = page.Schema

			c.log.Debug().
				Str("job", resp.JobReference).
				Int("rows", len(page.Rows)).
				Int64("total_rows", int64(page.TotalRows)).
				Msg("fetched query page")

			if !yield(page, nil) {
				return
			}

			if page.NextPageToken == "" {
				return
			}

			next.PageToken = page.NextPageToken
		}
	}
}

func (c *Client) queryAssets(ctx context.Context, svc *cloudasset.Service, parent string, query *Query) (*queryresult.Response, error) {
	req := &cloudasset.QueryAssetsRequest{
		Statement:    query.Statement,
		PageSize:     query.PageSize,
		PageToken:    query.PageToken,
		JobReference: query.JobReference,
	}

	if query.Timeout > 0 {
		req.Timeout = fmt.Sprintf("%gs", query.Timeout.Seconds())
	}

	resp, err := svc.V1.QueryAssets(parent, req).Context(ctx).Do()
	if err != nil {
		return nil, fromGoogleAPI(err, parent)
	}

	if resp.Error != nil {
		return nil, errs.E(
			errs.IO,
			errs.Parameter(parent),
			errs.Errorf("query job %s failed with code %d: %s", resp.JobReference, resp.Error.Code, resp.Error.Message),
		)
	}

	return fromAPIResponse(resp)
}

func fromAPIResponse(resp *cloudasset.QueryAssetsResponse) (*queryresult.Response, error) {
	out := &queryresult.Response{
		Done:         resp.Done,
		JobReference: resp.JobReference,
	}

	if resp.QueryResult == nil {
		return out, nil
	}

	rows := make([]*queryresult.Row, len(resp.QueryResult.Rows))

	for i, raw := range resp.QueryResult.Rows {
		data, err := json.Marshal(raw)
		if err != nil {
			return nil, errs.E(errs.IO, errs.Errorf("encoding row %d: %w", i, err))
		}

		row := &queryresult.Row{}

		err = json.Unmarshal(data, row)
		if err != nil {
			return nil, errs.E(errs.IO, errs.Errorf("decoding row %d: %w", i, err))
		}

		rows[i] = row
	}

	out.QueryResult = &queryresult.QueryResult{
		Rows:          rows,
		NextPageToken: resp.QueryResult.NextPageToken,
		TotalRows:     queryresult.Int64String(resp.QueryResult.TotalRows),
	}

	if resp.QueryResult.Schema != nil {
		out.QueryResult.Schema = &queryresult.RawSchema{
			Fields: rawFields(resp.QueryResult.Schema.Fields),
		}
	}

	return out, nil
}

func rawFields(fields []*cloudasset.TableFieldSchema) []*queryresult.RawField {
	if len(fields) == 0 {
		return nil
	}

	out := make([]*queryresult.RawField, len(fields))

	for i, f := range fields {
		out[i] = &queryresult.RawField{
			Field:  f.Field,
			Mode:   f.Mode,
			Type:   f.Type,
			Fields: rawFields(f.Fields),
		}
	}

	return out
}

func fromGoogleAPI(err error, parent string) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusNotFound:
			return errs.E(errs.NotExist, errs.Parameter(parent), err)
		case http.StatusBadRequest:
			return errs.E(errs.InvalidRequest, errs.Parameter(parent), err)
		case http.StatusUnauthorized, http.StatusForbidden:
			return errs.E(errs.Unauthenticated, errs.Parameter(parent), err)
		}
	}

	return errs.E(errs.IO, errs.Parameter(parent), err)
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

func (c *Client) service(ctx context.Context) (*cloudasset.Service, error) {
	var options []option.ClientOption

	if c.endpoint != "" {
		options = append(options, option.WithEndpoint(c.endpoint))
	}

	if !c.enableAuthentication {
		options = append(options, option.WithoutAuthentication())
	} else {
		creds, err := c.credentials(ctx)
		if err != nil {
			return nil, errs.E(errs.Unauthenticated, err)
		}

		options = append(options, option.WithTokenSource(creds.TokenSource))
	}

	svc, err := cloudasset.NewService(ctx, options...)
	if err != nil {
		return nil, errs.E(errs.IO, fmt.Errorf("creating cloud asset service: %w", err))
	}

	return svc, nil
}

func (c *Client) credentials(ctx context.Context) (*google.Credentials, error) {
	if c.credentialsFile == "" {
		creds, err := google.FindDefaultCredentials(ctx, cloudasset.CloudPlatformScope)
		if err != nil {
			return nil, fmt.Errorf("finding default credentials: %w", err)
		}

		return creds, nil
	}

	data, err := os.ReadFile(c.credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("reading credentials file: %w", err)
	}

	creds, err := google.CredentialsFromJSON(ctx, data, cloudasset.CloudPlatformScope)
	if err != nil {
		return nil, fmt.Errorf("parsing credentials file %s: %w", c.credentialsFile, err)
	}

	return creds, nil
}

// NewClient returns a client for the queryAssets API. Without authentication
// and with an endpoint, it can be pointed at a fake server. A zero
// pollInterval means DefaultPollInterval.
func NewClient(endpoint string, enableAuthentication bool, credentialsFile string, pollInterval time.Duration, log zerolog.Logger) *Client {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	return &Client{
		endpoint:             endpoint,
		enableAuthentication: enableAuthentication,
		credentialsFile:      credentialsFile,
		pollInterval:         pollInterval,
		log:                  log,
	}
}
