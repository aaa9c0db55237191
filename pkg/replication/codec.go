package replication

import (
	"encoding/json"
	"fmt"

	"github.com/go-drift/widgetkit/pkg/errors"
)

// WireVersion is the envelope format version written by this package.
const WireVersion = 1

// Envelope is one published batch of writes as it travels between sessions.
type Envelope struct {
	Version int     `json:"version"`
	Origin  string  `json:"origin"`
	Writes  []Write `json:"writes"`
}

// Codec encodes and decodes envelopes for transmission.
type Codec interface {
	Encode(env Envelope) ([]byte, error)
	Decode(data []byte) (Envelope, error)
}

// JSONCodec implements Codec using JSON encoding.
type JSONCodec struct{}

// ErrUnsupportedVersion is returned when decoding an envelope written by a
// newer wire format.
var ErrUnsupportedVersion = errors.New("replication: unsupported envelope version")

// Encode serializes the envelope to JSON bytes.
func (JSONCodec) Encode(env Envelope) ([]byte, error) {
	if env.Version == 0 {
		env.Version = WireVersion
	}
	return json.Marshal(env)
}

// Decode deserializes JSON bytes and validates every write.
func (JSONCodec) Decode(data []byte) (Envelope, error) {
	var env Envelope
	if len(data) == 0 {
		return env, &errors.ParseError{Event: "envelope", DataType: "Envelope", Reason: "empty payload"}
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return env, &errors.ParseError{Event: "envelope", DataType: "Envelope", Got: string(data), Reason: err.Error()}
	}
	if env.Version > WireVersion {
		return env, fmt.Errorf("%w: %d", ErrUnsupportedVersion, env.Version)
	}
	for i, w := range env.Writes {
		if err := w.Validate(); err != nil {
			return env, fmt.Errorf("write %d: %w", i, err)
		}
	}
	return env, nil
}

// DefaultCodec is the codec used by hubs unless configured otherwise.
var DefaultCodec Codec = JSONCodec{}
