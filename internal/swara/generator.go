package swara

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

// DefaultMaxRetries bounds consecutive rejected draws before a Generator gives up.
const DefaultMaxRetries = 10000

var (
	ErrEmptyAlphabet  = errors.New("swara: empty alphabet")
	ErrInvalidLength  = errors.New("swara: phrase length must be at least 1")
	ErrAnchorIsolated = errors.New("swara: no symbol may follow the anchor")
	ErrNoProgress     = errors.New("swara: no valid next symbol within retry budget")
	ErrInvalidPhrase  = errors.New("swara: invalid phrase")
)

// Generator draws phrases by a constrained random walk from the anchor.
type Generator struct {
	alphabet   []Symbol
	rules      *Rules
	anchor     Symbol
	maxRetries int
	rng        *rand.Rand
}

// NewGenerator creates a phrase generator. A nil rng uses a randomly seeded
// source; maxRetries <= 0 selects DefaultMaxRetries.
func NewGenerator(alphabet []Symbol, rules *Rules, anchor Symbol, maxRetries int, rng *rand.Rand) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Generator{
		alphabet:   alphabet,
		rules:      rules,
		anchor:     anchor,
		maxRetries: maxRetries,
		rng:        rng,
	}
}

// Generate returns a phrase of exactly length swaras. The walk starts at the
// anchor and is reversed before returning, so the anchor is the last swara.
func (g *Generator) Generate(length int) (Sequence, error) {
	if len(g.alphabet) == 0 {
		return nil, ErrEmptyAlphabet
	}
	if length < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidLength, length)
	}
	if length > 1 && len(g.rules.Followers(g.anchor, g.alphabet)) == 0 {
		return nil, fmt.Errorf("%w: anchor %q", ErrAnchorIsolated, g.anchor)
	}

	walk := make(Sequence, 1, length)
	walk[0] = g.anchor

	rejected := 0
	for len(walk) < length {
		next := g.alphabet[g.rng.IntN(len(g.alphabet))]
		if !g.accepts(walk, next) {
			rejected++
			if rejected > g.maxRetries {
				return nil, fmt.Errorf("%w: stuck after %q at position %d", ErrNoProgress, walk[len(walk)-1], len(walk))
			}
			continue
		}
		walk = append(walk, next)
		rejected = 0
	}

	for i, j := 0, len(walk)-1; i < j; i, j = i+1, j-1 {
		walk[i], walk[j] = walk[j], walk[i]
	}
	return walk, nil
}

// accepts reports whether next may be appended to walk.
func (g *Generator) accepts(walk Sequence, next Symbol) bool {
	last := walk[len(walk)-1]
	if g.rules.Forbids(last, next) {
		return false
	}
	n := len(walk)
	return n < 2 || walk[n-1] != next || walk[n-2] != next
}

// Check validates seq against the generator's own rules and anchor.
func (g *Generator) Check(seq Sequence) error {
	return Validate(seq, g.rules, g.anchor)
}

// Generate draws one phrase from alphabet with the default anchor and retry
// budget, forbidding every pair in invalid.
func Generate(rng *rand.Rand, alphabet []Symbol, length int, invalid []Pair) (Sequence, error) {
	return NewGenerator(alphabet, NewRules(invalid), Anchor, DefaultMaxRetries, rng).Generate(length)
}

// Validate checks a phrase against the adjacency and repetition rules and
// confirms it resolves to anchor.
func Validate(seq Sequence, rules *Rules, anchor Symbol) error {
	if len(seq) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidPhrase, ErrInvalidLength)
	}
	if last := seq[len(seq)-1]; last != anchor {
		return fmt.Errorf("%w: ends on %q, want %q", ErrInvalidPhrase, last, anchor)
	}
	for i := 1; i < len(seq); i++ {
		if rules.Forbids(seq[i-1], seq[i]) {
			return fmt.Errorf("%w: forbidden pair %q %q at position %d", ErrInvalidPhrase, seq[i-1], seq[i], i)
		}
		if i >= 2 && seq[i] == seq[i-1] && seq[i] == seq[i-2] {
			return fmt.Errorf("%w: %q repeated three times ending at position %d", ErrInvalidPhrase, seq[i], i)
		}
	}
	return nil
}
