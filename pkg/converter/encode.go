package converter

import (
	"bytes"
	"fmt"
	"io"
	"iter"

	"github.com/goccy/go-json"
	"github.com/navikt/asset-query-converter/pkg/errs"
)

const indent = "  "

// Encode writes the objects of seq to w as a single JSON array followed by a
// newline. Nothing is written unless every object converts.
func Encode(w io.Writer, seq iter.Seq2[Object, error], pretty bool) error {
	const op errs.Op = "converter.Encode"

	objects, err := Collect(seq)
	if err != nil {
		return errs.E(op, err)
	}

	data, err := Marshal(objects, pretty)
	if err != nil {
		return errs.E(errs.Internal, op, err)
	}

	_, err = w.Write(data)
	if err != nil {
		return errs.E(errs.IO, op, err)
	}

	return nil
}

// Marshal returns the JSON array of objects followed by a newline, indented
// by two spaces when pretty is set.
func Marshal(objects []Object, pretty bool) ([]byte, error) {
	if objects == nil {
		objects = []Object{}
	}

	data, err := json.Marshal(objects)
	if err != nil {
		return nil, fmt.Errorf("marshalling objects: %w", err)
	}

	if pretty {
		buf := &bytes.Buffer{}

		err = json.Indent(buf, data, "", indent)
		if err != nil {
			return nil, fmt.Errorf("indenting objects: %w", err)
		}

		data = buf.Bytes()
	}

	return append(data, '\n'), nil
}
