package codec

// Bytes is the identity codec for []byte values: the stored bytes are
// the value itself. Use it when callers already hold serialized data and
// only want the envelope framing and tiering.
type Bytes struct{}

var _ Codec[[]byte] = Bytes{}

func (Bytes) Encode(b []byte) ([]byte, error) { return b, nil }
func (Bytes) Decode(b []byte) ([]byte, error) { return b, nil }

// String stores Go strings as their raw bytes. No validation; the bytes
// are assumed UTF-8 by convention.
type String struct{}

var _ Codec[string] = String{}

func (String) Encode(s string) ([]byte, error) { return []byte(s), nil }
func (String) Decode(b []byte) (string, error) { return string(b), nil }
