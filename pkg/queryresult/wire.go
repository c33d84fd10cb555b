package queryresult

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/navikt/asset-query-converter/pkg/errs"
)

// ValueKind discriminates the payload of a FieldValue.
type ValueKind uint8

const (
	NullValue ValueKind = iota
	StringValue
	ListValue
	RecordValue
)

func (k ValueKind) String() string {
	switch k {
	case NullValue:
		return "null"
	case StringValue:
		return "string"
	case ListValue:
		return "list"
	case RecordValue:
		return "record"
	}

	return "unknown"
}

// Row is one result row, {"f": [...]}, holding one value per column of the
// governing schema in schema order.
type Row struct {
	F []*FieldValue `json:"f"`
}

// FieldValue is the wire form of a single column value, {"v": ...}. The
// payload is null, a string, a list of field values, or a nested row.
type FieldValue struct {
	Kind   ValueKind
	String string
	List   []*FieldValue
	Record *Row
}

func Null() *FieldValue {
	return &FieldValue{Kind: NullValue}
}

func String(s string) *FieldValue {
	return &FieldValue{Kind: StringValue, String: s}
}

func List(values ...*FieldValue) *FieldValue {
	if values == nil {
		values = []*FieldValue{}
	}

	return &FieldValue{Kind: ListValue, List: values}
}

func Record(values ...*FieldValue) *FieldValue {
	return &FieldValue{Kind: RecordValue, Record: &Row{F: values}}
}

// NewRow is shorthand for a Row holding the given values.
func NewRow(values ...*FieldValue) *Row {
	return &Row{F: values}
}

// Raw returns the string payload, or nil when the value is null.
func (v *FieldValue) Raw() *string {
	if v == nil || v.Kind != StringValue {
		return nil
	}

	s := v.String

	return &s
}

func (v *FieldValue) IsNull() bool {
	return v == nil || v.Kind == NullValue
}

func (v *FieldValue) UnmarshalJSON(data []byte) error {
	var raw struct {
		V json.RawMessage `json:"v"`
		F []*FieldValue   `json:"f"`
	}

	err := json.Unmarshal(data, &raw)
	if err != nil {
		return fmt.Errorf("field value: %w", err)
	}

	// A bare {"f": [...]} is a record element of a repeated record.
	if raw.V == nil && raw.F != nil {
		*v = FieldValue{Kind: RecordValue, Record: &Row{F: raw.F}}
		return nil
	}

	return v.decodePayload(raw.V)
}

func (v *FieldValue) decodePayload(data json.RawMessage) error {
	trimmed := bytes.TrimSpace(data)

	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*v = FieldValue{Kind: NullValue}
		return nil
	}

	switch trimmed[0] {
	case '"':
		var s string

		err := json.Unmarshal(trimmed, &s)
		if err != nil {
			return fmt.Errorf("string payload: %w", err)
		}

		*v = FieldValue{Kind: StringValue, String: s}
	case '[':
		list := []*FieldValue{}

		err := json.Unmarshal(trimmed, &list)
		if err != nil {
			return fmt.Errorf("list payload: %w", err)
		}

		*v = FieldValue{Kind: ListValue, List: list}
	case '{':
		row := &Row{}

		err := json.Unmarshal(trimmed, row)
		if err != nil {
			return fmt.Errorf("record payload: %w", err)
		}

		*v = FieldValue{Kind: RecordValue, Record: row}
	default:
		// Numbers and booleans are not produced by the API, but hand written
		// results use them; keep their literal text.
		*v = FieldValue{Kind: StringValue, String: string(trimmed)}
	}

	return nil
}

func (v *FieldValue) MarshalJSON() ([]byte, error) {
	if v == nil {
		return []byte(`{"v":null}`), nil
	}

	var payload any

	switch v.Kind {
	case StringValue:
		payload = v.String
	case ListValue:
		payload = v.List
	case RecordValue:
		payload = v.Record
	}

	return json.Marshal(map[string]any{"v": payload})
}

// Response is the response of the queryAssets API, which is also what
// `gcloud asset query --format=json` prints.
type Response struct {
	Done         bool         `json:"done"`
	JobReference string       `json:"jobReference,omitempty"`
	Error        *Status      `json:"error,omitempty"`
	QueryResult  *QueryResult `json:"queryResult,omitempty"`
}

type Status struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
}

type QueryResult struct {
	Rows          []*Row      `json:"rows"`
	Schema        *RawSchema  `json:"schema"`
	NextPageToken string      `json:"nextPageToken,omitempty"`
	TotalRows     Int64String `json:"totalRows,omitempty"`
}

// Int64String is an int64 that the API encodes as a JSON string, but that
// is also accepted as a number.
type Int64String int64

func (i *Int64String) UnmarshalJSON(data []byte) error {
	s := string(bytes.Trim(bytes.TrimSpace(data), `"`))
	if s == "" || s == "null" {
		*i = 0
		return nil
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("parsing int64 %q: %w", s, err)
	}

	*i = Int64String(n)

	return nil
}

func (i Int64String) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(strconv.FormatInt(int64(i), 10))), nil
}

// ParseResponse decodes a queryAssets response.
func ParseResponse(data []byte) (*Response, error) {
	r := &Response{}

	err := json.Unmarshal(data, r)
	if err != nil {
		return nil, fmt.Errorf("decoding query response: %w", err)
	}

	return r, nil
}

// Result returns the query result of a finished, successful query job.
func (r *Response) Result() (*QueryResult, error) {
	const op errs.Op = "queryresult.Result"

	if r.Error != nil {
		return nil, errs.E(errs.Invalid, op, errs.Parameter("error"),
			errs.Errorf("query job %s failed with code %d: %s", r.JobReference, r.Error.Code, r.Error.Message))
	}

	if !r.Done {
		return nil, errs.E(errs.Invalid, op, errs.Parameter("done"), errs.Errorf("query job %s is not done", r.JobReference))
	}

	if r.QueryResult == nil {
		return nil, errs.E(errs.Schema, op, errs.Parameter("queryResult"), "missing query result")
	}

	return r.QueryResult, nil
}
