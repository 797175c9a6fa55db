// Package state models the seven-dimension emotional state vector and its
// derived dominant dimension.
package state

import "math"

// Dimension is one of the seven named emotional/energetic categories.
type Dimension string

const (
	Physical Dimension = "Physical"
	Etheric  Dimension = "Etheric"
	Astral   Dimension = "Astral"
	Mental   Dimension = "Mental"
	Causal   Dimension = "Causal"
	Buddhic  Dimension = "Buddhic"
	Atmic    Dimension = "Atmic"
)

// Order is the canonical declaration order of the seven dimensions.
// Dominant-dimension ties are broken by this order: the dimension declared
// first wins.
var Order = [7]Dimension{Physical, Etheric, Astral, Mental, Causal, Buddhic, Atmic}

// Meta is the static display metadata attached to a dimension. It never
// changes at runtime and is not part of the mutable vector.
type Meta struct {
	Color string `json:"color"`
	Note  string `json:"note"`
	Chord string `json:"chord"`
	Icon  string `json:"icon"`
}

var metaTable = map[Dimension]Meta{
	Physical: {Color: "#FF0000", Note: "C", Chord: "C Major", Icon: "⚫"},
	Etheric:  {Color: "#FF7F00", Note: "D", Chord: "Dm7", Icon: "🌀"},
	Astral:   {Color: "#FFFF00", Note: "E", Chord: "E7", Icon: "⭐"},
	Mental:   {Color: "#00FF00", Note: "F", Chord: "Fmaj7", Icon: "▲"},
	Causal:   {Color: "#0000FF", Note: "G", Chord: "G7", Icon: "🪐"},
	Buddhic:  {Color: "#4B0082", Note: "A", Chord: "Am", Icon: "👁️"},
	Atmic:    {Color: "#9400D3", Note: "B", Chord: "Bdim", Icon: "∞"},
}

// MetaFor returns the display metadata for d.
func MetaFor(d Dimension) Meta {
	return metaTable[d]
}

// Vector holds a confidence score in [0,100] for each of the seven
// dimensions. The struct representation guarantees that all seven keys are
// always present; a zero Vector is a valid all-zero state.
type Vector struct {
	Physical float64 `json:"Physical"`
	Etheric  float64 `json:"Etheric"`
	Astral   float64 `json:"Astral"`
	Mental   float64 `json:"Mental"`
	Causal   float64 `json:"Causal"`
	Buddhic  float64 `json:"Buddhic"`
	Atmic    float64 `json:"Atmic"`
}

// Get returns the score for dimension d, or 0 for an unknown dimension.
func (v Vector) Get(d Dimension) float64 {
	switch d {
	case Physical:
		return v.Physical
	case Etheric:
		return v.Etheric
	case Astral:
		return v.Astral
	case Mental:
		return v.Mental
	case Causal:
		return v.Causal
	case Buddhic:
		return v.Buddhic
	case Atmic:
		return v.Atmic
	}
	return 0
}

// Clamp returns a copy of v with every score clipped into [0,100].
// Non-finite values become 0.
func (v Vector) Clamp() Vector {
	return Vector{
		Physical: clampScore(v.Physical),
		Etheric:  clampScore(v.Etheric),
		Astral:   clampScore(v.Astral),
		Mental:   clampScore(v.Mental),
		Causal:   clampScore(v.Causal),
		Buddhic:  clampScore(v.Buddhic),
		Atmic:    clampScore(v.Atmic),
	}
}

// Dominant returns the highest-scoring dimension and its score. Ties go to
// the dimension declared first in Order. Dominance is derived on every call
// and never stored.
func (v Vector) Dominant() (Dimension, float64) {
	best := Order[0]
	bestScore := v.Get(best)
	for _, d := range Order[1:] {
		if s := v.Get(d); s > bestScore {
			best, bestScore = d, s
		}
	}
	return best, bestScore
}

func clampScore(s float64) float64 {
	if math.IsNaN(s) || math.IsInf(s, 0) || s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}
