package models

import (
	"strconv"
	"time"

	"taproom/pkg/domain"
	dErrors "taproom/pkg/domain-errors"
)

// GlassType classifies a served beer by its volume.
type GlassType string

const (
	GlassHalf  GlassType = "half"
	GlassPint  GlassType = "pint"
	GlassStein GlassType = "stein"
)

// IsValid checks if the glass type is one of the supported enum values.
func (g GlassType) IsValid() bool {
	switch g {
	case GlassHalf, GlassPint, GlassStein:
		return true
	}
	return false
}

func (g GlassType) String() string {
	return string(g)
}

type glassRange struct {
	glass    GlassType
	min, max float64
}

// glassRanges is ordered; bounds are inclusive and the first match wins,
// so 300 is a half and 800 a pint.
var glassRanges = []glassRange{
	{GlassHalf, 100, 300},
	{GlassPint, 300, 800},
	{GlassStein, 800, 1000},
}

// ErrNoGlassType is the message returned for volumes outside every range.
const ErrNoGlassType = "There is no glass type for the specified volume"

// Classify returns the glass type for a volume in millilitres.
func Classify(volume float64) (GlassType, error) {
	for _, r := range glassRanges {
		if r.min <= volume && volume <= r.max {
			return r.glass, nil
		}
	}
	return "", dErrors.New(dErrors.CodeInvalidAmount, ErrNoGlassType)
}

// Beer is one serving event. It is immutable once constructed.
type Beer struct {
	id        domain.BeerID
	tapID     domain.TapID
	volume    float64
	glass     GlassType
	createdAt time.Time
}

// NewBeer classifies the volume and stamps the beer with now in UTC.
func NewBeer(tapID domain.TapID, id domain.BeerID, volume float64, now time.Time) (*Beer, error) {
	glass, err := Classify(volume)
	if err != nil {
		return nil, err
	}
	return &Beer{
		id:        id,
		tapID:     tapID,
		volume:    volume,
		glass:     glass,
		createdAt: now.UTC(),
	}, nil
}

func (b *Beer) ID() domain.BeerID    { return b.id }
func (b *Beer) TapID() domain.TapID  { return b.tapID }
func (b *Beer) Volume() float64      { return b.volume }
func (b *Beer) Type() GlassType      { return b.glass }
func (b *Beer) CreatedAt() time.Time { return b.createdAt }

func (b *Beer) timestamp() string {
	return b.createdAt.Format(time.RFC3339Nano)
}

func formatVolume(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Describe renders a one-line description for debug logs.
func (b *Beer) Describe() string {
	return b.timestamp() +
		" - tap_id: " + b.tapID.String() +
		" - beer_id: " + b.id.String() +
		" - type: " + b.glass.String() +
		" - ml: " + formatVolume(b.volume)
}

// BeerResponse is the wire form of a Beer.
type BeerResponse struct {
	ID        domain.BeerID `json:"id"`
	Type      GlassType     `json:"type"`
	Volume    float64       `json:"volume"`
	Timestamp string        `json:"timestamp"`
	TapID     domain.TapID  `json:"tapId"`
}

// ToResponse serializes the beer.
func (b *Beer) ToResponse() BeerResponse {
	return BeerResponse{
		ID:        b.id,
		Type:      b.glass,
		Volume:    b.volume,
		Timestamp: b.timestamp(),
		TapID:     b.tapID,
	}
}

// ToResponses serializes beers preserving order. It never returns nil.
func ToResponses(beers []*Beer) []BeerResponse {
	out := make([]BeerResponse, 0, len(beers))
	for _, b := range beers {
		out = append(out, b.ToResponse())
	}
	return out
}

// CreateBeerRequest is the POST /api/beers body.
type CreateBeerRequest struct {
	TapID  domain.TapID `json:"tapId"`
	Volume *float64     `json:"volume"`
}

// Validate checks presence and shape and normalizes the tap id in place.
// Volume ranges are checked by Classify.
func (r *CreateBeerRequest) Validate() error {
	tap, err := domain.ParseTapID(r.TapID.String())
	if err != nil {
		return err
	}
	r.TapID = tap
	if r.Volume == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "volume is required")
	}
	return nil
}

// BeerEnvelope wraps a single beer response.
type BeerEnvelope struct {
	Beer BeerResponse `json:"beer"`
}

// BeersEnvelope wraps a page of beers.
type BeersEnvelope struct {
	Beers []BeerResponse `json:"beers"`
}
