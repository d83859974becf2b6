// Package objectid provides the record identifier used by every collection:
// 12 bytes rendered as 24 lowercase hex digits, the first four bytes holding
// the creation time in unix seconds.
package objectid

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/leafybank/backend/internal/common/clock"
)

const (
	byteLength = 12
	hexLength  = 2 * byteLength
)

var ErrInvalidID = errors.New("invalid object id")

type ID string

func Parse(s string) (ID, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != hexLength {
		return "", fmt.Errorf("%w: expected %d hex digits, got %d", ErrInvalidID, hexLength, len(s))
	}
	if _, err := hex.DecodeString(s); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidID, err)
	}
	return ID(s), nil
}

func MustParse(s string) ID {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

func IsValid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

func (id ID) String() string {
	return string(id)
}

func (id ID) IsZero() bool {
	return id == ""
}

// Timestamp returns the creation second encoded in the identifier, or the
// zero time when the identifier is malformed.
func (id ID) Timestamp() time.Time {
	raw, err := hex.DecodeString(string(id))
	if err != nil || len(raw) != byteLength {
		return time.Time{}
	}
	return time.Unix(int64(binary.BigEndian.Uint32(raw[:4])), 0).UTC()
}

type Generator interface {
	NewID() (ID, error)
}

type TimeUUIDGenerator struct {
	clock clock.Clock
}

func NewGenerator(c clock.Clock) *TimeUUIDGenerator {
	if c == nil {
		c = clock.NewRealClock()
	}
	return &TimeUUIDGenerator{clock: c}
}

func (g *TimeUUIDGenerator) NewID() (ID, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate object id: %w", err)
	}

	var raw [byteLength]byte
	binary.BigEndian.PutUint32(raw[:4], uint32(g.clock.Now().Unix()))
	copy(raw[4:8], u[0:4])
	copy(raw[8:12], u[12:16])

	return ID(hex.EncodeToString(raw[:])), nil
}
