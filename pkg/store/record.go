package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/go-drift/widgetkit/pkg/errors"
)

// Record is one stored value with its write stamp. A deleted record is a
// tombstone: it has no value but keeps its stamp so that older writes
// cannot bring the entry back.
type Record struct {
	Value   json.RawMessage `json:"value,omitempty"`
	Stamp   Stamp           `json:"stamp"`
	Deleted bool            `json:"deleted,omitempty"`
}

// Dominates reports whether r should replace o under last-writer-wins.
func (r Record) Dominates(o Record) bool {
	return r.Stamp.After(o.Stamp)
}

// Equal reports whether two records carry the same stamp, value and state.
func (r Record) Equal(o Record) bool {
	return r.Stamp == o.Stamp && r.Deleted == o.Deleted && bytes.Equal(r.Value, o.Value)
}

// Encode converts v to its canonical JSON form. Values that cannot be
// replicated (functions, channels, complex numbers, cycles, NaN and
// infinities) are rejected with ErrUnserializable.
func Encode(v any) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		var typeErr *json.UnsupportedTypeError
		var valueErr *json.UnsupportedValueError
		var marshalErr *json.MarshalerError
		if errors.As(err, &typeErr) || errors.As(err, &valueErr) || errors.As(err, &marshalErr) {
			return nil, fmt.Errorf("%w: %v", errors.ErrUnserializable, err)
		}
		return nil, err
	}
	return data, nil
}

// Decode converts a stored value to T. An empty value decodes to the zero T.
func Decode[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("decode %s into %T: %w", truncate(raw), v, err)
	}
	return v, nil
}

func truncate(raw []byte) string {
	const limit = 40
	if len(raw) <= limit {
		return string(raw)
	}
	return string(raw[:limit]) + "..."
}
