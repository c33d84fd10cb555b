package converter

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/goccy/go-json"
)

var nanosPerSecond = big.NewInt(int64(time.Second))

func identity(raw *string) (any, error) {
	if raw == nil {
		return nil, nil
	}

	return *raw, nil
}

func isEmpty(raw *string) bool {
	return raw == nil || *raw == ""
}

func decodeBytes(raw *string) (any, error) {
	if isEmpty(raw) {
		return nil, nil
	}

	b, err := base64.StdEncoding.DecodeString(*raw)
	if err != nil {
		return nil, fmt.Errorf("decoding base64: %w", err)
	}

	return b, nil
}

func decodeInteger(raw *string) (any, error) {
	if raw == nil {
		return nil, nil
	}

	n, err := strconv.ParseInt(*raw, 10, 64)
	if err != nil {
		return nil, err
	}

	return n, nil
}

func decodeFloat(raw *string) (any, error) {
	if raw == nil {
		return nil, nil
	}

	f, err := strconv.ParseFloat(*raw, 64)
	if err != nil {
		return nil, err
	}

	return f, nil
}

// decodeFiniteFloat decodes like decodeFloat but keeps NaN and the
// infinities in their raw string form, since JSON has no literal for them.
func decodeFiniteFloat(raw *string) (any, error) {
	v, err := decodeFloat(raw)
	if err != nil || v == nil {
		return v, err
	}

	if f := v.(float64); math.IsNaN(f) || math.IsInf(f, 0) {
		return *raw, nil
	}

	return v, nil
}

func decodeBoolean(raw *string) (any, error) {
	if isEmpty(raw) {
		return nil, nil
	}

	return *raw == "true", nil
}

func decodeTimestamp(raw *string) (any, error) {
	if isEmpty(raw) {
		return nil, nil
	}

	return parseEpochSeconds(*raw)
}

// decodeDateTime accepts seconds since the epoch as well as the canonical
// civil form, 2025-02-12T12:07:35.919282. Both are read as UTC.
func decodeDateTime(raw *string) (any, error) {
	if isEmpty(raw) {
		return nil, nil
	}

	if t, err := parseEpochSeconds(*raw); err == nil {
		return t, nil
	}

	dt, err := civil.ParseDateTime(strings.Replace(*raw, " ", "T", 1))
	if err != nil {
		return nil, fmt.Errorf("neither epoch seconds nor a civil datetime: %w", err)
	}

	return dt.In(time.UTC), nil
}

func decodeDate(raw *string) (any, error) {
	if isEmpty(raw) {
		return nil, nil
	}

	d, err := civil.ParseDate(*raw)
	if err != nil {
		return nil, err
	}

	return d, nil
}

func decodeTime(raw *string) (any, error) {
	if isEmpty(raw) {
		return nil, nil
	}

	t, err := civil.ParseTime(*raw)
	if err != nil {
		return nil, err
	}

	return t, nil
}

func decodeNumeric(raw *string) (any, error) {
	if isEmpty(raw) {
		return nil, nil
	}

	r, ok := new(big.Rat).SetString(*raw)
	if !ok {
		return nil, fmt.Errorf("not a decimal number")
	}

	return r, nil
}

func decodeJSON(raw *string) (any, error) {
	if isEmpty(raw) {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(*raw)))
	dec.UseNumber()

	var v any

	err := dec.Decode(&v)
	if err != nil {
		return nil, fmt.Errorf("parsing embedded json: %w", err)
	}

	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing embedded json: unexpected data after the document")
	}

	return v, nil
}

// parseEpochSeconds reads a possibly fractional number of seconds since the
// epoch, exponent notation included, exact to the nanosecond.
func parseEpochSeconds(s string) (time.Time, error) {
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return time.Time{}, fmt.Errorf("not a number of seconds: %q", s)
	}

	nanos := new(big.Int).Mul(r.Num(), nanosPerSecond)
	nanos.Div(nanos, r.Denom())

	sec, nsec := new(big.Int).DivMod(nanos, nanosPerSecond, new(big.Int))
	if !sec.IsInt64() {
		return time.Time{}, fmt.Errorf("seconds out of range: %q", s)
	}

	return time.Unix(sec.Int64(), nsec.Int64()).UTC(), nil
}
