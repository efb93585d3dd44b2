package model

import (
	"fmt"
	"strconv"
)

// Rate is the player's numeric or ordinal skill rating, tagged by kind.
// Ordering is defined within the same tag only, by XP.Less and Udemae.Less;
// there is no cross-tag comparison.
type Rate interface {
	Kind() string
	// Equal reports value equality, regardless of kind (different kinds are
	// never equal).
	Equal(Rate) bool
	isRate()
}

// XP is a numeric X Power / Anarchy Power rating in [500, 5500].
type XP struct {
	Value float64
}

func (XP) Kind() string { return "xp" }
func (XP) isRate()      {}

func (x XP) Equal(other Rate) bool {
	o, ok := other.(XP)
	return ok && o.Value == x.Value
}

// Less reports whether x is a lower rating than other.
func (x XP) Less(other XP) bool { return x.Value < other.Value }

// Valid reports whether the XP value is within the documented domain.
func (x XP) Valid() bool { return x.Value >= 500 && x.Value <= 5500 }

// Udemae is an ordinal anarchy-series rank.
type Udemae struct {
	Rank UdemaeRank
}

func (Udemae) Kind() string { return "udemae" }
func (Udemae) isRate()      {}

func (u Udemae) Equal(other Rate) bool {
	o, ok := other.(Udemae)
	return ok && o.Rank == u.Rank
}

// Less reports whether u is a lower rank than other.
func (u Udemae) Less(other Udemae) bool { return u.Rank.Less(other.Rank) }

// RateString renders a Rate as the flat scalar the metadata sidecar documents
// (spec.md §6): an XP value prints its decimal value, an Udemae value prints
// its rank. Returns "" for nil.
func RateString(r Rate) string {
	switch v := r.(type) {
	case nil:
		return ""
	case XP:
		return strconv.FormatFloat(v.Value, 'f', -1, 64)
	case Udemae:
		return string(v.Rank)
	default:
		return ""
	}
}

// ParseRateString is RateString's inverse, mirroring RateBase.create: a
// value that parses as a float is XP, otherwise it's treated as an Udemae
// rank. Returns nil, nil for "".
func ParseRateString(s string) (Rate, error) {
	if s == "" {
		return nil, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return XP{Value: f}, nil
	}
	rank := UdemaeRank(s)
	if rank.rank() < 0 {
		return nil, fmt.Errorf("model: invalid rate %q", s)
	}
	return Udemae{Rank: rank}, nil
}

// ShouldUpdateRate implements the spec's Open Question resolution: a rate
// update is applied when the new value's kind differs from the old one's, or
// when the kind matches but the value differs. A nil old value always
// triggers an update when new is non-nil.
func ShouldUpdateRate(old, new Rate) bool {
	if new == nil {
		return false
	}
	if old == nil {
		return true
	}
	if old.Kind() != new.Kind() {
		return true
	}
	return !old.Equal(new)
}
