// Package wire encodes the on-disk entry envelope.
//
// An envelope is one JSON object {key, value, expires_at}. The value
// field carries the codec output for the user value and is opaque here;
// as a []byte it marshals to base64, so binary codec output stays
// representable inside the JSON document. expires_at is absolute
// milliseconds since epoch, null when the entry does not expire.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrCorrupt reports bytes that do not decode to a valid envelope.
var ErrCorrupt = errors.New("strata: corrupt envelope")

// Envelope is the on-disk record for one cache entry. Decoding a stored
// envelope yields back the exact key, value, and expiry that were
// written.
type Envelope struct {
	Key       string `json:"key"`
	Value     []byte `json:"value"`
	ExpiresAt *int64 `json:"expires_at"`
}

// Encode renders e as JSON.
func Encode(e Envelope) ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("strata: encode envelope: %w", err)
	}
	return b, nil
}

// Decode parses b into an Envelope. Returns ErrCorrupt joined with the
// cause when b does not parse. Decode accepts every envelope Encode can
// produce; in particular the empty key is a legal key, not a corruption
// marker.
func Decode(b []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(b, &e); err != nil {
		return Envelope{}, errors.Join(ErrCorrupt, err)
	}
	return e, nil
}

// At converts an absolute expiry to the pointer form stored on disk;
// zero (no expiry) becomes nil, never 0.
func At(expiresAt int64) *int64 {
	if expiresAt == 0 {
		return nil
	}
	return &expiresAt
}

// Expiry converts the stored pointer form back; nil means no expiry.
func Expiry(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}
