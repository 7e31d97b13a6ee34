package cache

import (
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrInvalidResultType is returned when cached bytes cannot be decoded into
// the requested type.
var ErrInvalidResultType = errors.New("cache: cached value does not match result type")

// Encode serializes a value for storage.
func Encode(v any) ([]byte, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("cache: encode %T: %w", v, err)
	}
	return data, nil
}

// Decode deserializes stored bytes into out.
func Decode(data []byte, out any) error {
	if err := msgpack.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResultType, err)
	}
	return nil
}
