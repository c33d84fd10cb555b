// Package converter turns the positional, string encoded rows of a Cloud
// Asset Inventory query result into nested objects, guided by the result's
// schema.
//
// Every scalar is decoded by the DecoderFunc a Registry holds for its field
// type. NativeRegistry produces Go values, WireRegistry produces values that
// serialize to JSON without loss.
package converter

import (
	"fmt"
	"iter"
	"strings"

	"github.com/navikt/asset-query-converter/pkg/errs"
	"github.com/navikt/asset-query-converter/pkg/queryresult"
)

type Converter struct {
	registry Registry
}

// New returns a converter using registry. A nil registry means
// NativeRegistry. Types missing from registry keep their raw string form.
func New(registry Registry) *Converter {
	if registry == nil {
		registry = NativeRegistry()
	}

	return &Converter{
		registry: registry,
	}
}

// NewStrict is like New, but refuses a registry that does not cover every
// scalar type.
func NewStrict(registry Registry) (*Converter, error) {
	const op errs.Op = "converter.NewStrict"

	if registry == nil {
		registry = NativeRegistry()
	}

	if missing := registry.Missing(); len(missing) > 0 {
		names := make([]string, len(missing))
		for i, t := range missing {
			names[i] = string(t)
		}

		return nil, errs.E(errs.Invalid, op, errs.Errorf("no decoder for %s", strings.Join(names, ", ")))
	}

	return &Converter{
		registry: registry,
	}, nil
}

func (c *Converter) Registry() Registry {
	return c.registry
}

// Row converts a single row. The values of the row correspond to the columns
// of schema by position.
func (c *Converter) Row(schema queryresult.Schema, row *queryresult.Row) (Object, error) {
	const op errs.Op = "converter.Row"

	if row == nil {
		return nil, errs.E(errs.SchemaMismatch, op, "missing row")
	}

	obj, err := c.record(schema, row, "")
	if err != nil {
		return nil, errs.E(op, err)
	}

	return obj, nil
}

// Rows converts rows lazily, in order. The sequence ends after the first
// failing row.
func (c *Converter) Rows(schema queryresult.Schema, rows []*queryresult.Row) iter.Seq2[Object, error] {
	return func(yield func(Object, error) bool) {
		for _, row := range rows {
			obj, err := c.Row(schema, row)
			if err != nil {
				yield(nil, err)
				return
			}

			if !yield(obj, nil) {
				return
			}
		}
	}
}

// QueryResult loads the schema of qr and converts its rows.
func (c *Converter) QueryResult(qr *queryresult.QueryResult) iter.Seq2[Object, error] {
	const op errs.Op = "converter.QueryResult"

	if qr == nil {
		return failed(errs.E(errs.Schema, op, "missing query result"))
	}

	schema, err := queryresult.LoadSchema(qr.Schema)
	if err != nil {
		return failed(errs.E(op, err))
	}

	return c.Rows(schema, qr.Rows)
}

// Collect drains seq, stopping at the first error.
func Collect(seq iter.Seq2[Object, error]) ([]Object, error) {
	out := []Object{}

	for obj, err := range seq {
		if err != nil {
			return nil, err
		}

		out = append(out, obj)
	}

	return out, nil
}

func failed(err error) iter.Seq2[Object, error] {
	return func(yield func(Object, error) bool) {
		yield(nil, err)
	}
}

func (c *Converter) record(schema queryresult.Schema, row *queryresult.Row, path string) (Object, error) {
	var values []*queryresult.FieldValue
	if row != nil {
		values = row.F
	}

	if len(values) != len(schema) {
		return nil, errs.E(
			errs.SchemaMismatch,
			param(path),
			errs.Errorf("row has %d values but schema has %d columns", len(values), len(schema)),
		)
	}

	obj := make(Object, 0, len(schema))

	for i, col := range schema {
		v, err := c.column(col, values[i], join(path, col.Name))
		if err != nil {
			return nil, err
		}

		obj = append(obj, Field{Name: col.Name, Value: v})
	}

	return obj, nil
}

func (c *Converter) column(col *queryresult.Column, value *queryresult.FieldValue, path string) (any, error) {
	if col.IsRecord() {
		return c.recordColumn(col, value, path)
	}

	return c.scalarColumn(col, value, path)
}

func (c *Converter) recordColumn(col *queryresult.Column, value *queryresult.FieldValue, path string) (any, error) {
	if value.IsNull() {
		return nil, nil
	}

	if !col.IsRepeated() {
		if value.Kind != queryresult.RecordValue {
			return nil, mismatch(path, "expected a record, got a %s", value.Kind)
		}

		return c.record(col.Fields, value.Record, path)
	}

	if value.Kind != queryresult.ListValue {
		return nil, mismatch(path, "expected a list of records, got a %s", value.Kind)
	}

	if len(value.List) == 0 {
		return nil, nil
	}

	out := make([]any, len(value.List))

	for i, elem := range value.List {
		elemPath := fmt.Sprintf("%s[%d]", path, i)

		switch {
		case elem.IsNull():
			out[i] = nil
		case elem.Kind == queryresult.RecordValue:
			obj, err := c.record(col.Fields, elem.Record, elemPath)
			if err != nil {
				return nil, err
			}

			out[i] = obj
		default:
			return nil, mismatch(elemPath, "expected a record, got a %s", elem.Kind)
		}
	}

	return out, nil
}

func (c *Converter) scalarColumn(col *queryresult.Column, value *queryresult.FieldValue, path string) (any, error) {
	decode := c.registry.Decoder(col.Type)

	if value.IsNull() {
		return c.decode(col, decode, nil, path)
	}

	if col.IsRepeated() && value.Kind == queryresult.ListValue {
		out := make([]any, len(value.List))

		for i, elem := range value.List {
			elemPath := fmt.Sprintf("%s[%d]", path, i)

			if !elem.IsNull() && elem.Kind != queryresult.StringValue {
				return nil, mismatch(elemPath, "expected a %s value, got a %s", col.Type, elem.Kind)
			}

			v, err := c.decode(col, decode, elem.Raw(), elemPath)
			if err != nil {
				return nil, err
			}

			out[i] = v
		}

		return out, nil
	}

	if value.Kind != queryresult.StringValue {
		return nil, mismatch(path, "expected a %s value, got a %s", col.Type, value.Kind)
	}

	return c.decode(col, decode, value.Raw(), path)
}

func (c *Converter) decode(col *queryresult.Column, decode DecoderFunc, raw *string, path string) (any, error) {
	v, err := decode(raw)
	if err != nil {
		if raw == nil {
			return nil, errs.E(errs.Decode, param(path), errs.Errorf("%s value null: %w", col.Type, err))
		}

		return nil, errs.E(errs.Decode, param(path), errs.Errorf("%s value %q: %w", col.Type, *raw, err))
	}

	return v, nil
}

func mismatch(path, format string, args ...any) error {
	return errs.E(errs.SchemaMismatch, param(path), errs.Errorf(format, args...))
}

func param(path string) errs.Parameter {
	if path == "" {
		return errs.Parameter("row")
	}

	return errs.Parameter(path)
}

func join(path, name string) string {
	if path == "" {
		return name
	}

	return path + "." + name
}
