package codec

import (
	"encoding/binary"
	"errors"
)

// Game move payloads may carry a one-byte protocol version header before the
// opcode. Version 1 is the only version in use.
const (
	ProtocolVersion    uint8 = 1
	MinProtocolVersion uint8 = 1
	MaxProtocolVersion uint8 = 1
)

// ErrMalformedPayload is the codec-level decode failure. Engines wrap it into
// their own error taxonomy.
var ErrMalformedPayload = errors.New("malformed payload")

// VersionedPayload is the result of stripping a version header.
type VersionedPayload struct {
	Version uint8
	Payload []byte
}

// StripVersionHeader validates and removes the leading version byte.
// Empty payloads and unsupported versions are rejected.
func StripVersionHeader(payload []byte) (VersionedPayload, error) {
	if len(payload) == 0 {
		return VersionedPayload{}, ErrMalformedPayload
	}
	v := payload[0]
	if v < MinProtocolVersion || v > MaxProtocolVersion {
		return VersionedPayload{}, ErrMalformedPayload
	}
	return VersionedPayload{Version: v, Payload: payload[1:]}, nil
}

// ParseU64BE reads a big-endian u64 at offset, rejecting short buffers.
func ParseU64BE(payload []byte, offset int) (uint64, error) {
	if offset < 0 || len(payload) < offset+8 {
		return 0, ErrMalformedPayload
	}
	return binary.BigEndian.Uint64(payload[offset : offset+8]), nil
}

// ParsePlaceBet decodes the common table-game bet placement payload
// [0, betType, target, amount u64]. Length must be exactly 11 bytes and the
// amount nonzero.
func ParsePlaceBet(payload []byte) (betType, target uint8, amount uint64, err error) {
	if len(payload) != 11 || payload[0] != 0 {
		return 0, 0, 0, ErrMalformedPayload
	}
	amount, err = ParseU64BE(payload, 3)
	if err != nil {
		return 0, 0, 0, err
	}
	if err := EnsureNonzeroAmount(amount); err != nil {
		return 0, 0, 0, err
	}
	return payload[1], payload[2], amount, nil
}

func EnsureNonzeroAmount(amount uint64) error {
	if amount == 0 {
		return ErrMalformedPayload
	}
	return nil
}

// ClampBetAmount caps a side-bet amount at the table maximum. Over-limit
// bets are shrunk, not refused, matching table-limit behavior.
func ClampBetAmount(amount, maxAmount uint64) uint64 {
	if amount > maxAmount {
		return maxAmount
	}
	return amount
}
