package jobstore

import (
	"encoding/binary"
	"fmt"

	joberrors "github.com/meridianfs/core/pkg/errors"
)

// envelopeHeaderSize is the width of the version prefix: a 4-byte
// big-endian uint32, per the bit-exact state_blob/checkpoint_blob
// contract.
const envelopeHeaderSize = 4

// EncodeEnvelope wraps payload in the [4-byte big-endian version][payload]
// layout used for both state_blob and checkpoint_blob.
func EncodeEnvelope(version uint32, payload []byte) []byte {
	out := make([]byte, envelopeHeaderSize+len(payload))
	binary.BigEndian.PutUint32(out[:envelopeHeaderSize], version)
	copy(out[envelopeHeaderSize:], payload)
	return out
}

// DecodeEnvelope splits an envelope into its version and payload.
// Readers refuse envelopes carrying a version newer than maxKnownVersion
// with ErrVersionMismatch rather than attempting to interpret bytes in
// an unknown format.
func DecodeEnvelope(blob []byte, maxKnownVersion uint32) (version uint32, payload []byte, err error) {
	if len(blob) < envelopeHeaderSize {
		return 0, nil, fmt.Errorf("%w: envelope shorter than header", joberrors.ErrSerialization)
	}

	version = binary.BigEndian.Uint32(blob[:envelopeHeaderSize])
	if version > maxKnownVersion {
		return version, nil, fmt.Errorf("%w: envelope version %d exceeds known version %d",
			ErrVersionMismatch, version, maxKnownVersion)
	}

	payload = blob[envelopeHeaderSize:]
	return version, payload, nil
}
