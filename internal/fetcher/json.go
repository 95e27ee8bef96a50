package fetcher

import (
	"context"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
)

// DecodeArray decodes a top-level JSON array one element at a time,
// checking ctx between elements so a large discovery payload can be
// abandoned mid-stream.
func DecodeArray[T any](ctx context.Context, r io.Reader) ([]T, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return nil, eris.Wrap(err, "json: read opening token")
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return nil, eris.Errorf("json: expected '[', got %v", tok)
	}

	var out []T
	for i := 0; dec.More(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "json: decode cancelled")
		}
		var item T
		if err := dec.Decode(&item); err != nil {
			return nil, eris.Wrapf(err, "json: decode element %d", i)
		}
		out = append(out, item)
	}

	// A body cut before the closing bracket surfaces here as io.EOF.
	tok, err = dec.Token()
	if err != nil {
		return nil, eris.Wrap(err, "json: read closing token")
	}
	if delim, ok := tok.(json.Delim); !ok || delim != ']' {
		return nil, eris.Errorf("json: expected ']', got %v", tok)
	}
	return out, nil
}

// DecodeObject decodes a single JSON value into a T. A literal null yields
// a nil pointer and no error.
func DecodeObject[T any](r io.Reader) (*T, error) {
	var obj *T
	if err := json.NewDecoder(r).Decode(&obj); err != nil {
		return nil, eris.Wrap(err, "json: decode object")
	}
	return obj, nil
}
