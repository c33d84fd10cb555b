package queryresult_test

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
	"github.com/navikt/asset-query-converter/pkg/errs"
	"github.com/navikt/asset-query-converter/pkg/queryresult"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldValue_UnmarshalJSON(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		input     string
		expect    *queryresult.FieldValue
		expectErr bool
	}{
		{
			name:   "string",
			input:  `{"v": "abc"}`,
			expect: queryresult.String("abc"),
		},
		{
			name:   "empty string is not null",
			input:  `{"v": ""}`,
			expect: queryresult.String(""),
		},
		{
			name:   "null",
			input:  `{"v": null}`,
			expect: queryresult.Null(),
		},
		{
			name:   "absent payload",
			input:  `{}`,
			expect: queryresult.Null(),
		},
		{
			name:   "list of strings",
			input:  `{"v": [{"v": "a"}, {"v": null}]}`,
			expect: queryresult.List(queryresult.String("a"), queryresult.Null()),
		},
		{
			name:   "empty list",
			input:  `{"v": []}`,
			expect: queryresult.List(),
		},
		{
			name:   "record",
			input:  `{"v": {"f": [{"v": "key"}, {"v": "value"}]}}`,
			expect: queryresult.Record(queryresult.String("key"), queryresult.String("value")),
		},
		{
			name:   "list of records",
			input:  `{"v": [{"v": {"f": [{"v": "1"}]}}]}`,
			expect: queryresult.List(queryresult.Record(queryresult.String("1"))),
		},
		{
			name:   "bare record element",
			input:  `{"v": [{"f": [{"v": "1"}]}]}`,
			expect: queryresult.List(queryresult.Record(queryresult.String("1"))),
		},
		{
			name:   "number literal keeps its text",
			input:  `{"v": 42}`,
			expect: queryresult.String("42"),
		},
		{
			name:      "malformed",
			input:     `{"v": [}`,
			expectErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := &queryresult.FieldValue{}

			err := json.Unmarshal([]byte(tc.input), got)
			if tc.expectErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)

			if diff := cmp.Diff(tc.expect, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFieldValue_MarshalJSON(t *testing.T) {
	t.Parallel()

	row := queryresult.NewRow(
		queryresult.String("a"),
		queryresult.Null(),
		queryresult.List(queryresult.String("b")),
		queryresult.Record(queryresult.String("c")),
	)

	got, err := json.Marshal(row)
	require.NoError(t, err)

	assert.JSONEq(t, `{"f":[{"v":"a"},{"v":null},{"v":[{"v":"b"}]},{"v":{"f":[{"v":"c"}]}}]}`, string(got))
}

func TestFieldValue_Raw(t *testing.T) {
	t.Parallel()

	var missing *queryresult.FieldValue

	assert.Nil(t, missing.Raw())
	assert.Nil(t, queryresult.Null().Raw())
	assert.Nil(t, queryresult.List().Raw())

	raw := queryresult.String("x").Raw()
	require.NotNil(t, raw)
	assert.Equal(t, "x", *raw)
}

func TestParseResponse(t *testing.T) {
	t.Parallel()

	response := readResponse(t, "testdata/query-result.json")

	assert.True(t, response.Done)
	assert.Equal(t, "CiBqb2JfZDNmY2E1NjctYmE3MS00YjNjLWJhZTctMDk3ZDk3NmI2OWEzEgJldQ", response.JobReference)
	require.NotNil(t, response.QueryResult)
	assert.Equal(t, queryresult.Int64String(2), response.QueryResult.TotalRows)
	assert.Len(t, response.QueryResult.Rows, 2)
	assert.Len(t, response.QueryResult.Schema.Fields, 6)
	assert.Equal(t, "", response.QueryResult.NextPageToken)
}

func TestInt64String(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		input     string
		expect    queryresult.Int64String
		expectErr bool
	}{
		{name: "string", input: `{"totalRows": "12"}`, expect: 12},
		{name: "number", input: `{"totalRows": 12}`, expect: 12},
		{name: "absent", input: `{}`, expect: 0},
		{name: "garbage", input: `{"totalRows": "twelve"}`, expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := queryresult.QueryResult{}

			err := json.Unmarshal([]byte(tc.input), &got)
			if tc.expectErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.expect, got.TotalRows)
		})
	}
}

func TestResponse_Result(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		input  string
		expect errs.Kind
		param  errs.Parameter
	}{
		{
			name:   "failed job",
			input:  `{"done": true, "jobReference": "job-1", "error": {"code": 3, "message": "Unrecognized name: nope"}}`,
			expect: errs.Invalid,
			param:  "error",
		},
		{
			name:   "running job",
			input:  `{"done": false, "jobReference": "job-1"}`,
			expect: errs.Invalid,
			param:  "done",
		},
		{
			name:   "no query result",
			input:  `{"done": true}`,
			expect: errs.Schema,
			param:  "queryResult",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			response, err := queryresult.ParseResponse([]byte(tc.input))
			require.NoError(t, err)

			_, err = response.Result()
			require.Error(t, err)
			assert.True(t, errs.KindIs(tc.expect, err), "expected %s, got: %v", tc.expect, err)
			assert.Equal(t, tc.param, errs.ParamOf(err))
		})
	}

	response := readResponse(t, "testdata/query-result.json")

	got, err := response.Result()
	require.NoError(t, err)
	assert.Same(t, response.QueryResult, got)
}
