package swara

import "strings"

// Symbol is one swara of the alphabet, e.g. "s" or "s#" for the upper Sa.
type Symbol string

const (
	Sa     Symbol = "s"
	Ri     Symbol = "r"
	Ga     Symbol = "g"
	Pa     Symbol = "p"
	Ni     Symbol = "n"
	TaraSa Symbol = "s#" // Sa of the upper octave
)

// Anchor is the swara every phrase resolves to.
const Anchor = Ri

// Alphabet lists the swaras phrases are drawn from.
var Alphabet = []Symbol{Sa, Ri, Ga, Pa, Ni, TaraSa}

// Pair is an unordered pair of swaras that may not sound back to back.
type Pair [2]Symbol

// InvalidPairs maps out the leaps the phrase generator refuses to take.
// Each pair is forbidden in both directions.
var InvalidPairs = []Pair{
	{Ga, Sa},
	{Ni, Ri},
	{Ni, Sa},
	{Ni, Ga},
	{Pa, Ri},
	{Pa, Sa},
	{Sa, Ni},
	{Sa, Pa},
	{TaraSa, Ga},
	{TaraSa, Pa},
	{TaraSa, Sa},
	{TaraSa, Ri},
}

// Rules answers adjacency queries against a set of invalid pairs.
type Rules struct {
	forbidden map[Pair]struct{}
}

// NewRules indexes pairs so that Forbids checks both orders in constant time.
func NewRules(pairs []Pair) *Rules {
	r := &Rules{forbidden: make(map[Pair]struct{}, len(pairs)*2)}
	for _, p := range pairs {
		r.forbidden[p] = struct{}{}
		r.forbidden[Pair{p[1], p[0]}] = struct{}{}
	}
	return r
}

// Forbids reports whether b may not directly follow a (or a follow b).
func (r *Rules) Forbids(a, b Symbol) bool {
	if r == nil {
		return false
	}
	_, ok := r.forbidden[Pair{a, b}]
	return ok
}

// Followers returns the symbols of alphabet allowed directly after s.
func (r *Rules) Followers(s Symbol, alphabet []Symbol) []Symbol {
	var out []Symbol
	for _, c := range alphabet {
		if !r.Forbids(s, c) {
			out = append(out, c)
		}
	}
	return out
}

// Sequence is an ordered phrase of swaras.
type Sequence []Symbol

// String joins the phrase with spaces, the way it is logged each cycle.
func (s Sequence) String() string {
	parts := make([]string, len(s))
	for i, sym := range s {
		parts[i] = string(sym)
	}
	return strings.Join(parts, " ")
}

// Names maps every swara to the recording it is rendered from.
func (s Sequence) Names() []string {
	names := make([]string, len(s))
	for i, sym := range s {
		names[i] = string(sym)
	}
	return names
}

// IsValid checks whether name is a swara of the alphabet.
func IsValid(name string) bool {
	for _, s := range Alphabet {
		if string(s) == name {
			return true
		}
	}
	return false
}
