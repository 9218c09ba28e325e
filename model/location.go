package model

import (
	"fmt"
	"math"
	"time"
)

// EntityKind is the type of geographic entity a query can resolve to.
type EntityKind string

const (
	EntityKindRegion      EntityKind = "region"
	EntityKindGovernorate EntityKind = "governorate"
)

// Valid reports whether k is one of the known entity kinds.
func (k EntityKind) Valid() bool {
	return k == EntityKindRegion || k == EntityKindGovernorate
}

// ParseEntityKind converts a string into an EntityKind.
func ParseEntityKind(s string) (EntityKind, error) {
	k := EntityKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown entity kind %q", s)
	}
	return k, nil
}

// Region is a top level administrative area.
type Region struct {
	ID        string    `json:"region_id"`
	NameAr    string    `json:"name_ar"`
	NameEn    string    `json:"name_en"`
	Embedding []float32 `json:"-"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Governorate belongs to a region and carries an optional position.
type Governorate struct {
	ID        string    `json:"gov_id"`
	RegionID  string    `json:"region_id"`
	NameAr    string    `json:"name_ar"`
	NameEn    string    `json:"name_en"`
	Latitude  *float64  `json:"latitude,omitempty"`
	Longitude *float64  `json:"longitude,omitempty"`
	Embedding []float32 `json:"-"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LocationMatch is a region or governorate scored against a query vector.
type LocationMatch struct {
	Kind   EntityKind `json:"type"`
	ID     string     `json:"id"`
	NameAr string     `json:"name_ar"`
	NameEn string     `json:"name_en"`
	Score  float64    `json:"score"`
}

// Less orders matches by score descending, then kind and id ascending.
func (m *LocationMatch) Less(other *LocationMatch) bool {
	if m.Score != other.Score {
		return m.Score > other.Score
	}
	if m.Kind != other.Kind {
		return m.Kind < other.Kind
	}
	return m.ID < other.ID
}

// RoundScore rounds a similarity score to two decimals and clamps it to [0,1].
func RoundScore(score float64) float64 {
	if math.IsNaN(score) || score <= 0 {
		return 0
	}
	if score >= 1 {
		return 1
	}
	return math.Round(score*100) / 100
}
