package converter

import (
	"sort"

	"github.com/navikt/asset-query-converter/pkg/queryresult"
)

// DecoderFunc turns the raw string form of a scalar value into its
// destination representation. A nil raw value is a SQL NULL, and decoders
// return a nil value for it.
type DecoderFunc func(raw *string) (any, error)

// Registry maps each scalar field type to the decoder used for it.
type Registry map[queryresult.FieldType]DecoderFunc

// Decoder returns the decoder for t. Types without a decoder keep their raw
// string form.
func (r Registry) Decoder(t queryresult.FieldType) DecoderFunc {
	if fn, ok := r[t]; ok && fn != nil {
		return fn
	}

	return identity
}

// Missing returns the scalar types that have no decoder, in sorted order.
func (r Registry) Missing() []queryresult.FieldType {
	var missing []queryresult.FieldType

	for _, t := range queryresult.ScalarTypes() {
		if fn, ok := r[t]; !ok || fn == nil {
			missing = append(missing, t)
		}
	}

	sort.Slice(missing, func(i, j int) bool {
		return missing[i] < missing[j]
	})

	return missing
}

// Complete reports whether every scalar type has a decoder.
func (r Registry) Complete() bool {
	return len(r.Missing()) == 0
}

// NativeRegistry decodes every scalar into a Go value:
//
//	STRING, GEOGRAPHY    string
//	BYTES                []byte
//	INTEGER              int64
//	FLOAT                float64
//	BOOLEAN              bool
//	TIMESTAMP, DATETIME  time.Time in UTC
//	DATE                 civil.Date
//	TIME                 civil.Time
//	NUMERIC, BIGNUMERIC  *big.Rat
//	JSON                 map[string]any, []any, string, bool or json.Number
func NativeRegistry() Registry {
	return Registry{
		queryresult.StringFieldType:     identity,
		queryresult.BytesFieldType:      decodeBytes,
		queryresult.IntegerFieldType:    decodeInteger,
		queryresult.FloatFieldType:      decodeFloat,
		queryresult.BooleanFieldType:    decodeBoolean,
		queryresult.TimestampFieldType:  decodeTimestamp,
		queryresult.DateFieldType:       decodeDate,
		queryresult.TimeFieldType:       decodeTime,
		queryresult.DateTimeFieldType:   decodeDateTime,
		queryresult.GeographyFieldType:  identity,
		queryresult.NumericFieldType:    decodeNumeric,
		queryresult.BigNumericFieldType: decodeNumeric,
		queryresult.JSONFieldType:       decodeJSON,
	}
}

// WireRegistry decodes only what has a natural JSON form: numbers, booleans
// and embedded JSON documents. Everything else keeps its raw string form, so
// the result can be serialized as JSON without loss. FLOAT values NaN,
// Infinity and -Infinity stay strings.
func WireRegistry() Registry {
	return Registry{
		queryresult.StringFieldType:     identity,
		queryresult.BytesFieldType:      identity,
		queryresult.IntegerFieldType:    decodeInteger,
		queryresult.FloatFieldType:      decodeFiniteFloat,
		queryresult.BooleanFieldType:    decodeBoolean,
		queryresult.TimestampFieldType:  identity,
		queryresult.DateFieldType:       identity,
		queryresult.TimeFieldType:       identity,
		queryresult.DateTimeFieldType:   identity,
		queryresult.GeographyFieldType:  identity,
		queryresult.NumericFieldType:    identity,
		queryresult.BigNumericFieldType: identity,
		queryresult.JSONFieldType:       decodeJSON,
	}
}

// Clone returns a copy of r that can be modified without affecting r.
func (r Registry) Clone() Registry {
	out := make(Registry, len(r))
	for k, v := range r {
		out[k] = v
	}

	return out
}
