package converter_test

import (
	"math/big"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
	"github.com/navikt/asset-query-converter/pkg/converter"
	"github.com/navikt/asset-query-converter/pkg/queryresult"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(s string) *string {
	return &s
}

func TestRegistry_Complete(t *testing.T) {
	t.Parallel()

	assert.True(t, converter.NativeRegistry().Complete())
	assert.Empty(t, converter.NativeRegistry().Missing())
	assert.True(t, converter.WireRegistry().Complete())
	assert.Empty(t, converter.WireRegistry().Missing())

	assert.Len(t, converter.NativeRegistry(), len(queryresult.ScalarTypes()))
	assert.Len(t, converter.WireRegistry(), len(queryresult.ScalarTypes()))
}

func TestRegistry_Missing(t *testing.T) {
	t.Parallel()

	r := converter.NativeRegistry().Clone()
	delete(r, queryresult.TimeFieldType)
	delete(r, queryresult.BytesFieldType)

	assert.False(t, r.Complete())
	assert.Equal(t, []queryresult.FieldType{queryresult.BytesFieldType, queryresult.TimeFieldType}, r.Missing())
	assert.True(t, converter.NativeRegistry().Complete(), "clone must not share state")

	assert.Len(t, converter.Registry{}.Missing(), len(queryresult.ScalarTypes()))
}

func TestRegistry_DecoderFallsBackToIdentity(t *testing.T) {
	t.Parallel()

	decode := converter.Registry{}.Decoder(queryresult.IntegerFieldType)

	got, err := decode(ptr("42"))
	require.NoError(t, err)
	assert.Equal(t, "42", got)

	got, err = decode(nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestNativeRegistry(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		fieldType queryresult.FieldType
		raw       *string
		expect    any
		expectErr bool
	}{
		{name: "string", fieldType: queryresult.StringFieldType, raw: ptr("abc"), expect: "abc"},
		{name: "string empty", fieldType: queryresult.StringFieldType, raw: ptr(""), expect: ""},
		{name: "string null", fieldType: queryresult.StringFieldType, raw: nil, expect: nil},
		{name: "geography", fieldType: queryresult.GeographyFieldType, raw: ptr("POINT(10 59)"), expect: "POINT(10 59)"},
		{name: "bytes", fieldType: queryresult.BytesFieldType, raw: ptr("AAAAAAAAAAE="), expect: []byte{0, 0, 0, 0, 0, 0, 0, 1}},
		{name: "bytes null", fieldType: queryresult.BytesFieldType, raw: nil, expect: nil},
		{name: "bytes empty", fieldType: queryresult.BytesFieldType, raw: ptr(""), expect: nil},
		{name: "bytes invalid", fieldType: queryresult.BytesFieldType, raw: ptr("!!"), expectErr: true},
		{name: "integer", fieldType: queryresult.IntegerFieldType, raw: ptr("-12"), expect: int64(-12)},
		{name: "integer null", fieldType: queryresult.IntegerFieldType, raw: nil, expect: nil},
		{name: "integer empty", fieldType: queryresult.IntegerFieldType, raw: ptr(""), expectErr: true},
		{name: "integer invalid", fieldType: queryresult.IntegerFieldType, raw: ptr("1.5"), expectErr: true},
		{name: "float", fieldType: queryresult.FloatFieldType, raw: ptr("1.5E2"), expect: 150.0},
		{name: "float null", fieldType: queryresult.FloatFieldType, raw: nil, expect: nil},
		{name: "float empty", fieldType: queryresult.FloatFieldType, raw: ptr(""), expectErr: true},
		{name: "boolean true", fieldType: queryresult.BooleanFieldType, raw: ptr("true"), expect: true},
		{name: "boolean false", fieldType: queryresult.BooleanFieldType, raw: ptr("false"), expect: false},
		{name: "boolean other", fieldType: queryresult.BooleanFieldType, raw: ptr("TRUE"), expect: false},
		{name: "boolean null", fieldType: queryresult.BooleanFieldType, raw: nil, expect: nil},
		{name: "boolean empty", fieldType: queryresult.BooleanFieldType, raw: ptr(""), expect: nil},
		{
			name:      "timestamp",
			fieldType: queryresult.TimestampFieldType,
			raw:       ptr("1.739362055919282E9"),
			expect:    time.Date(2025, time.February, 12, 12, 7, 35, 919282000, time.UTC),
		},
		{
			name:      "timestamp whole seconds",
			fieldType: queryresult.TimestampFieldType,
			raw:       ptr("1739174400"),
			expect:    time.Date(2025, time.February, 10, 8, 0, 0, 0, time.UTC),
		},
		{
			name:      "timestamp before the epoch",
			fieldType: queryresult.TimestampFieldType,
			raw:       ptr("-1.5"),
			expect:    time.Date(1969, time.December, 31, 23, 59, 58, 500000000, time.UTC),
		},
		{name: "timestamp null", fieldType: queryresult.TimestampFieldType, raw: nil, expect: nil},
		{name: "timestamp invalid", fieldType: queryresult.TimestampFieldType, raw: ptr("yesterday"), expectErr: true},
		{
			name:      "datetime epoch",
			fieldType: queryresult.DateTimeFieldType,
			raw:       ptr("1739174400"),
			expect:    time.Date(2025, time.February, 10, 8, 0, 0, 0, time.UTC),
		},
		{
			name:      "datetime civil",
			fieldType: queryresult.DateTimeFieldType,
			raw:       ptr("2025-02-12T12:07:35.919282"),
			expect:    time.Date(2025, time.February, 12, 12, 7, 35, 919282000, time.UTC),
		},
		{
			name:      "datetime civil with space",
			fieldType: queryresult.DateTimeFieldType,
			raw:       ptr("2025-02-12 12:07:35"),
			expect:    time.Date(2025, time.February, 12, 12, 7, 35, 0, time.UTC),
		},
		{name: "datetime invalid", fieldType: queryresult.DateTimeFieldType, raw: ptr("soon"), expectErr: true},
		{name: "date", fieldType: queryresult.DateFieldType, raw: ptr("2025-02-12"), expect: civil.Date{Year: 2025, Month: time.February, Day: 12}},
		{name: "date null", fieldType: queryresult.DateFieldType, raw: nil, expect: nil},
		{name: "date invalid", fieldType: queryresult.DateFieldType, raw: ptr("12.02.2025"), expectErr: true},
		{
			name:      "time",
			fieldType: queryresult.TimeFieldType,
			raw:       ptr("12:07:35.919282"),
			expect:    civil.Time{Hour: 12, Minute: 7, Second: 35, Nanosecond: 919282000},
		},
		{name: "time null", fieldType: queryresult.TimeFieldType, raw: nil, expect: nil},
		{name: "json", fieldType: queryresult.JSONFieldType, raw: ptr(`{"date":"2025-02-12"}`), expect: map[string]any{"date": "2025-02-12"}},
		{name: "json numbers", fieldType: queryresult.JSONFieldType, raw: ptr(`[1, 2.5]`), expect: []any{json.Number("1"), json.Number("2.5")}},
		{name: "json null literal", fieldType: queryresult.JSONFieldType, raw: ptr(`null`), expect: nil},
		{name: "json null", fieldType: queryresult.JSONFieldType, raw: nil, expect: nil},
		{name: "json empty", fieldType: queryresult.JSONFieldType, raw: ptr(""), expect: nil},
		{name: "json invalid", fieldType: queryresult.JSONFieldType, raw: ptr(`{"date":`), expectErr: true},
		{name: "json trailing data", fieldType: queryresult.JSONFieldType, raw: ptr(`{"a":1} trailing garbage`), expectErr: true},
		{name: "json two documents", fieldType: queryresult.JSONFieldType, raw: ptr(`{"a":1} {"b":2}`), expectErr: true},
		{name: "json trailing whitespace", fieldType: queryresult.JSONFieldType, raw: ptr("{\"a\":\"b\"}\n "), expect: map[string]any{"a": "b"}},
		{name: "numeric null", fieldType: queryresult.NumericFieldType, raw: nil, expect: nil},
		{name: "numeric invalid", fieldType: queryresult.NumericFieldType, raw: ptr("1,5"), expectErr: true},
	}

	registry := converter.NativeRegistry()

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := registry[tc.fieldType](tc.raw)
			if tc.expectErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)

			if tc.expect == nil {
				assert.Nil(t, got)
				return
			}

			if diff := cmp.Diff(tc.expect, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNativeRegistry_Numeric(t *testing.T) {
	t.Parallel()

	for _, fieldType := range []queryresult.FieldType{queryresult.NumericFieldType, queryresult.BigNumericFieldType} {
		got, err := converter.NativeRegistry()[fieldType](ptr("123456789012345678901234567890.123456789"))
		require.NoError(t, err)

		r, ok := got.(*big.Rat)
		require.True(t, ok, "expected *big.Rat, got %T", got)

		expect, _ := new(big.Rat).SetString("123456789012345678901234567890123456789/1000000000")
		assert.Equal(t, 0, expect.Cmp(r), r.String())
	}
}

func TestWireRegistry(t *testing.T) {
	t.Parallel()

	passthrough := []queryresult.FieldType{
		queryresult.StringFieldType,
		queryresult.BytesFieldType,
		queryresult.TimestampFieldType,
		queryresult.DateFieldType,
		queryresult.TimeFieldType,
		queryresult.DateTimeFieldType,
		queryresult.GeographyFieldType,
		queryresult.NumericFieldType,
		queryresult.BigNumericFieldType,
	}

	registry := converter.WireRegistry()

	for _, fieldType := range passthrough {
		got, err := registry[fieldType](ptr("1.739362055919282E9"))
		require.NoError(t, err)
		assert.Equal(t, "1.739362055919282E9", got, fieldType)

		got, err = registry[fieldType](nil)
		require.NoError(t, err)
		assert.Nil(t, got, fieldType)
	}

	got, err := registry[queryresult.JSONFieldType](ptr(`{"date":"2025-02-12"}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"date": "2025-02-12"}, got)

	got, err = registry[queryresult.IntegerFieldType](ptr("7"))
	require.NoError(t, err)
	assert.Equal(t, int64(7), got)

	got, err = registry[queryresult.BooleanFieldType](ptr("true"))
	require.NoError(t, err)
	assert.Equal(t, true, got)
}

func TestWireRegistry_Float(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		raw       *string
		expect    any
		expectErr bool
	}{
		{name: "finite", raw: ptr("1.5E2"), expect: 150.0},
		{name: "nan", raw: ptr("NaN"), expect: "NaN"},
		{name: "infinity", raw: ptr("Infinity"), expect: "Infinity"},
		{name: "negative infinity", raw: ptr("-Infinity"), expect: "-Infinity"},
		{name: "null", raw: nil, expect: nil},
		{name: "invalid", raw: ptr("one"), expectErr: true},
	}

	decode := converter.WireRegistry()[queryresult.FloatFieldType]

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := decode(tc.raw)
			if tc.expectErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.expect, got)

			_, err = json.Marshal(got)
			assert.NoError(t, err)
		})
	}
}
