// Package queryresult models the result of a Cloud Asset Inventory query:
// the self-describing column schema and the positionally encoded rows, as
// returned by the queryAssets API.
//
// See https://cloud.google.com/asset-inventory/docs/reference/rest/v1/TopLevel/queryAssets
package queryresult

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/navikt/asset-query-converter/pkg/errs"
)

type Mode string

func (m Mode) String() string {
	return string(m)
}

const (
	NullableMode Mode = "NULLABLE"
	RequiredMode Mode = "REQUIRED"
	RepeatedMode Mode = "REPEATED"
)

type FieldType string

func (f FieldType) String() string {
	return string(f)
}

const (
	// StringFieldType is a string field type.
	StringFieldType FieldType = "STRING"
	// BytesFieldType is a base64 encoded bytes field type.
	BytesFieldType FieldType = "BYTES"
	// IntegerFieldType is a integer field type.
	IntegerFieldType FieldType = "INTEGER"
	// FloatFieldType is a float field type.
	FloatFieldType FieldType = "FLOAT"
	// BooleanFieldType is a boolean field type.
	BooleanFieldType FieldType = "BOOLEAN"
	// TimestampFieldType is a timestamp field type, encoded as seconds since the epoch.
	TimestampFieldType FieldType = "TIMESTAMP"
	// DateFieldType is a date field type.
	DateFieldType FieldType = "DATE"
	// TimeFieldType is a time field type.
	TimeFieldType FieldType = "TIME"
	// DateTimeFieldType is a datetime field type.
	DateTimeFieldType FieldType = "DATETIME"
	// GeographyFieldType is a string field type. Geography types represent a set of points
	// on the Earth's surface, represented in Well Known Text (WKT) format.
	GeographyFieldType FieldType = "GEOGRAPHY"
	// NumericFieldType is an exact decimal field type.
	NumericFieldType FieldType = "NUMERIC"
	// BigNumericFieldType is a numeric field type that supports values of larger precision
	// and scale than the NumericFieldType.
	BigNumericFieldType FieldType = "BIGNUMERIC"
	// JSONFieldType is a representation of a json object.
	JSONFieldType FieldType = "JSON"
	// RecordFieldType is a record field type. It is used for columns with nested data,
	// and is never a scalar type.
	RecordFieldType FieldType = "RECORD"
)

var scalarTypes = []FieldType{
	StringFieldType,
	BytesFieldType,
	IntegerFieldType,
	FloatFieldType,
	BooleanFieldType,
	TimestampFieldType,
	DateFieldType,
	TimeFieldType,
	DateTimeFieldType,
	GeographyFieldType,
	NumericFieldType,
	BigNumericFieldType,
	JSONFieldType,
}

// ScalarTypes returns every field type a leaf value can have, that is all
// field types except RECORD.
func ScalarTypes() []FieldType {
	out := make([]FieldType, len(scalarTypes))
	copy(out, scalarTypes)

	return out
}

// IsScalar reports whether f is one of the scalar field types.
func (f FieldType) IsScalar() bool {
	for _, s := range scalarTypes {
		if s == f {
			return true
		}
	}

	return false
}

// Column is either a scalar column, carrying its scalar Type, or a record
// column with Type RECORD and its nested Fields.
type Column struct {
	Name   string
	Mode   Mode
	Type   FieldType
	Fields Schema
}

func (c *Column) IsRecord() bool {
	return c.Type == RecordFieldType
}

func (c *Column) IsRepeated() bool {
	return c.Mode == RepeatedMode
}

// Schema is the ordered list of columns of a result set, or of the children
// of a record column. Position defines the correspondence with row values.
type Schema []*Column

// RawSchema is the untyped schema, as found in the schema field of a query
// result.
type RawSchema struct {
	Fields []*RawField `json:"fields" yaml:"fields"`
}

type RawField struct {
	Field  string      `json:"field" yaml:"field"`
	Mode   string      `json:"mode,omitempty" yaml:"mode,omitempty"`
	Type   string      `json:"type" yaml:"type"`
	Fields []*RawField `json:"fields,omitempty" yaml:"fields,omitempty"`
}

func (f RawField) Validate() error {
	isRecord := f.Type == string(RecordFieldType)

	return validation.ValidateStruct(&f,
		validation.Field(&f.Field, validation.Required),
		validation.Field(&f.Type, validation.Required, validation.In(knownTypes()...)),
		validation.Field(&f.Mode, validation.In(
			string(NullableMode),
			string(RequiredMode),
			string(RepeatedMode),
		)),
		validation.Field(&f.Fields,
			validation.Required.When(isRecord).Error("a RECORD must have fields"),
			validation.Empty.When(!isRecord).Error("only a RECORD can have fields"),
			validation.By(uniqueFieldNames),
		),
	)
}

func (s RawSchema) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Fields, validation.Required, validation.By(uniqueFieldNames)),
	)
}

func knownTypes() []any {
	out := make([]any, 0, len(scalarTypes)+1)
	for _, t := range scalarTypes {
		out = append(out, string(t))
	}

	return append(out, string(RecordFieldType))
}

func uniqueFieldNames(value any) error {
	fields, _ := value.([]*RawField)

	seen := map[string]struct{}{}
	for _, f := range fields {
		if f == nil {
			return fmt.Errorf("null field")
		}

		if _, ok := seen[f.Field]; ok {
			return fmt.Errorf("duplicate field name %q", f.Field)
		}

		seen[f.Field] = struct{}{}
	}

	return nil
}

// LoadSchema builds the column tree from its raw form. A field is a record
// if and only if its type is RECORD. A missing mode defaults to NULLABLE.
func LoadSchema(raw *RawSchema) (Schema, error) {
	const op errs.Op = "queryresult.LoadSchema"

	if raw == nil {
		return nil, errs.E(errs.Schema, op, errs.Str("missing schema"))
	}

	err := raw.Validate()
	if err != nil {
		return nil, errs.E(errs.Schema, op, err)
	}

	return loadFields(raw.Fields), nil
}

func loadFields(fields []*RawField) Schema {
	schema := make(Schema, len(fields))

	for i, f := range fields {
		mode := Mode(f.Mode)
		if mode == "" {
			mode = NullableMode
		}

		col := &Column{
			Name: f.Field,
			Mode: mode,
			Type: FieldType(f.Type),
		}

		if col.IsRecord() {
			col.Fields = loadFields(f.Fields)
		}

		schema[i] = col
	}

	return schema
}

// Dump returns the raw form of the schema, with every mode explicit.
func (s Schema) Dump() *RawSchema {
	return &RawSchema{
		Fields: dumpFields(s),
	}
}

func dumpFields(s Schema) []*RawField {
	fields := make([]*RawField, len(s))

	for i, col := range s {
		f := &RawField{
			Field: col.Name,
			Mode:  string(col.Mode),
			Type:  string(col.Type),
		}

		if col.IsRecord() {
			f.Fields = dumpFields(col.Fields)
		}

		fields[i] = f
	}

	return fields
}
