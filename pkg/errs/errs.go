// Package errs provides the error type used across the converter and its
// collaborators. An error carries the operation that failed, the kind of
// failure and, optionally, the parameter (column path, flag, field) involved.
//
// Errors are built with E, which accepts its arguments in any order:
//
//	const op errs.Op = "converter.Row"
//	return errs.E(errs.SchemaMismatch, op, errs.Parameter("resource.data"), err)
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Op names the operation being performed, usually "package.Function" or
// "type.Method".
type Op string

// Parameter is the name of the input that caused the error, for the
// converter this is the dotted path of the offending column.
type Parameter string

// Kind classifies an error.
type Kind uint8

const (
	Other           Kind = iota // Unclassified error.
	Invalid                     // Invalid operation for this type of item.
	IO                          // External I/O error such as network failure.
	Internal                    // Internal error or inconsistency.
	InvalidRequest              // Invalid request from a client.
	NotExist                    // Item does not exist.
	Unauthenticated             // Missing or invalid credentials.
	Schema                      // Malformed or unrecognized schema definition.
	SchemaMismatch              // Row shape does not match the governing schema.
	Decode                      // Scalar value could not be decoded.
)

func (k Kind) String() string {
	switch k {
	case Other:
		return "other_error"
	case Invalid:
		return "invalid_operation"
	case IO:
		return "io_error"
	case Internal:
		return "internal_error"
	case InvalidRequest:
		return "invalid_request_error"
	case NotExist:
		return "not_exist"
	case Unauthenticated:
		return "unauthenticated"
	case Schema:
		return "schema_error"
	case SchemaMismatch:
		return "schema_mismatch_error"
	case Decode:
		return "decode_error"
	}

	return "unknown_error_kind"
}

type Error struct {
	Op    Op
	Kind  Kind
	Param Parameter
	Err   error
}

func (e *Error) Error() string {
	b := new(strings.Builder)

	if e.Op != "" {
		b.WriteString(string(e.Op))
	}

	if e.Param != "" {
		pad(b, ": ")
		b.WriteString(string(e.Param))
	}

	if e.Kind != Other {
		pad(b, ": ")
		b.WriteString(e.Kind.String())
	}

	if e.Err != nil {
		var inner *Error
		if errors.As(e.Err, &inner) {
			pad(b, ":\n\t")
		} else {
			pad(b, ": ")
		}

		b.WriteString(e.Err.Error())
	}

	if b.Len() == 0 {
		return "no error"
	}

	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func pad(b *strings.Builder, s string) {
	if b.Len() == 0 {
		return
	}

	b.WriteString(s)
}

// E builds an error from its arguments. Arguments are interpreted by type:
//
//	Op        the operation being performed
//	Parameter the parameter involved
//	Kind      the class of error
//	string    treated as an error message
//	error     the underlying error
//
// If the kind is not given and the underlying error is an *Error, the kind
// is inherited from it.
func E(args ...any) error {
	if len(args) == 0 {
		panic("call to errs.E with no arguments")
	}

	e := &Error{}

	for _, arg := range args {
		switch arg := arg.(type) {
		case Op:
			e.Op = arg
		case Parameter:
			e.Param = arg
		case Kind:
			e.Kind = arg
		case string:
			e.Err = Str(arg)
		case *Error:
			cp := *arg
			e.Err = &cp
		case error:
			e.Err = arg
		case nil:
			continue
		default:
			return fmt.Errorf("unknown type %T, value %v in error call", arg, arg)
		}
	}

	var inner *Error
	if e.Kind == Other && errors.As(e.Err, &inner) {
		e.Kind = inner.Kind
	}

	return e
}

// Str returns an error that formats as the given text.
func Str(text string) error {
	return errors.New(text)
}

// Errorf is equivalent to fmt.Errorf, kept here so callers only import errs.
func Errorf(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}

// KindIs reports whether err is an *Error of the given kind. If err has kind
// Other, the first nested *Error with a kind decides.
func KindIs(kind Kind, err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}

	if e.Kind != Other {
		return e.Kind == kind
	}

	if e.Err != nil {
		return KindIs(kind, e.Err)
	}

	return false
}

// KindOf returns the kind of the outermost classified *Error, or Other.
func KindOf(err error) Kind {
	var e *Error
	for errors.As(err, &e) {
		if e.Kind != Other {
			return e.Kind
		}

		err = e.Err
	}

	return Other
}

// ParamOf returns the first parameter recorded in err, outermost first.
func ParamOf(err error) Parameter {
	var e *Error
	for errors.As(err, &e) {
		if e.Param != "" {
			return e.Param
		}

		err = e.Err
	}

	return ""
}

// OpStack returns the operations recorded in err, outermost first.
func OpStack(err error) []string {
	var ops []string

	var e *Error
	for errors.As(err, &e) {
		if e.Op != "" {
			ops = append(ops, string(e.Op))
		}

		err = e.Err
	}

	return ops
}
