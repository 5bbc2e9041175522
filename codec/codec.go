// Package codec defines value serialization for the cache. Encoded bytes
// are what travels through the on-disk envelope; the cache itself never
// inspects them.
package codec

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
