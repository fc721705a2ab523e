// Package domain holds the typed identifiers shared across taproom modules.
// Identifiers are parsed once at the trust boundary and passed around typed,
// so a tap id can never be handed to something expecting a beer id.
package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/uuid"

	dErrors "taproom/pkg/domain-errors"
)

// maxTapIDLength bounds tap identifiers accepted from clients.
const maxTapIDLength = 64

// BeerID identifies one served beer. Values come from the beer id sequence.
type BeerID int64

// ParseBeerID parses a decimal beer id from a path segment.
func ParseBeerID(s string) (BeerID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "beer id is required")
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "beer id must be an integer")
	}
	return BeerID(n), nil
}

func (id BeerID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// TapID is the opaque identifier of a dispensing point.
//
// Taps historically report their id either as a JSON number or a string; both
// are kept verbatim as text.
type TapID string

// ParseTapID validates a tap identifier.
func ParseTapID(s string) (TapID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "tapId is required")
	}
	if len(s) > maxTapIDLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "tapId is too long")
	}
	for _, r := range s {
		if unicode.IsControl(r) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "tapId contains control characters")
		}
	}
	return TapID(s), nil
}

func (t TapID) String() string {
	return string(t)
}

// UnmarshalJSON accepts both `"3"` and `3`.
func (t *TapID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = TapID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "tapId must be a string or a number")
	}
	*t = TapID(n.String())
	return nil
}

// ConnectionID identifies one live realtime connection.
type ConnectionID uuid.UUID

// NewConnectionID returns a random connection id.
func NewConnectionID() ConnectionID {
	return ConnectionID(uuid.New())
}

func (c ConnectionID) String() string {
	return uuid.UUID(c).String()
}

