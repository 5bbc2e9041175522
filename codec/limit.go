package codec

import "fmt"

// LimitCodec caps the payload size another codec will decode. Encode is
// forwarded to Inner unchanged; Decode fails before reaching Inner when
// the payload is over the cap. Useful when the cache directory is shared
// with writers you do not control.
type LimitCodec[V any] struct {
	// Inner is the codec being wrapped. Must be set.
	Inner Codec[V]
	// MaxDecode is the largest payload Decode accepts, in bytes.
	// <= 0 disables the check.
	MaxDecode int
}

func (c LimitCodec[V]) Encode(v V) ([]byte, error) { return c.Inner.Encode(v) }

func (c LimitCodec[V]) Decode(b []byte) (V, error) {
	if c.MaxDecode > 0 && len(b) > c.MaxDecode {
		var zero V
		return zero, fmt.Errorf("payload too large: %d > %d", len(b), c.MaxDecode)
	}
	return c.Inner.Decode(b)
}
