// Package mutate provides mutational payload generators: case permutation,
// character-encoding variation, and deterministic charset fuzzing. Mutations
// are value transformations only; they never touch the network.
package mutate

import (
	"math/rand"
	"unicode"

	"github.com/injectest/injectest/pkg/payload"
)

// DefaultCaseCap bounds case-permutation blow-up. Only the first
// DefaultCaseCap cased runes vary, keeping the variant count at 2^cap
// regardless of input length.
const DefaultCaseCap = 12

// CaseVariants returns all case permutations of s with the default cap.
// See CaseVariantsCapped.
func CaseVariants(s string) []string {
	return CaseVariantsCapped(s, DefaultCaseCap)
}

// CaseVariantsCapped returns exactly 2^min(v, cap) pairwise distinct case
// permutations of s, where v counts the runes with a case counterpart.
// Runes without one (digits, punctuation) pass through unchanged and do
// not consume a variant bit. Variant 0 is always s itself.
func CaseVariantsCapped(s string, cap int) []string {
	if cap <= 0 {
		cap = DefaultCaseCap
	}
	runes := []rune(s)
	var varied []int
	for i, r := range runes {
		if swapCase(r) != r {
			varied = append(varied, i)
			if len(varied) == cap {
				break
			}
		}
	}

	total := 1 << len(varied)
	variants := make([]string, 0, total)
	for mask := 0; mask < total; mask++ {
		v := make([]rune, len(runes))
		copy(v, runes)
		for bit := range varied {
			if mask&(1<<bit) != 0 {
				v[varied[bit]] = swapCase(v[varied[bit]])
			}
		}
		variants = append(variants, string(v))
	}
	return variants
}

func swapCase(r rune) rune {
	if unicode.IsUpper(r) {
		return unicode.ToLower(r)
	}
	if unicode.IsLower(r) {
		return unicode.ToUpper(r)
	}
	return r
}

// caseGenerator adapts CaseVariantsCapped to the payload contract.
type caseGenerator struct {
	input string
	cap   int
}

func (g *caseGenerator) Name() string { return "case-variation" }

func (g *caseGenerator) Payloads() (payload.Stream, error) {
	if g.input == "" {
		return nil, payload.GenerationErrorf("case variation needs a non-empty input")
	}
	return payload.FromSlice(CaseVariantsCapped(g.input, g.cap)), nil
}

// CaseGenerator returns a Generator over the case permutations of input.
// cap <= 0 selects DefaultCaseCap.
func CaseGenerator(input string, cap int) payload.Generator {
	return &caseGenerator{input: input, cap: cap}
}

// charsetGenerator produces seeded random strings over an alphabet.
type charsetGenerator struct {
	alphabet []rune
	length   int
	count    int
	seed     int64
}

func (g *charsetGenerator) Name() string { return "charset-fuzz" }

func (g *charsetGenerator) Payloads() (payload.Stream, error) {
	if len(g.alphabet) == 0 {
		return nil, payload.GenerationErrorf("charset fuzz needs a non-empty alphabet")
	}
	if g.length <= 0 {
		return nil, payload.GenerationErrorf("charset fuzz length must be positive, got %d", g.length)
	}
	if g.count < 0 {
		return nil, payload.GenerationErrorf("charset fuzz count cannot be negative, got %d", g.count)
	}

	// A fresh source per stream makes the sequence restartable: the same
	// seed always replays the same values.
	rng := rand.New(rand.NewSource(g.seed))
	produced := 0
	return payload.FromFunc(func() (string, bool) {
		if produced >= g.count {
			return "", false
		}
		produced++
		out := make([]rune, g.length)
		for i := range out {
			out[i] = g.alphabet[rng.Intn(len(g.alphabet))]
		}
		return string(out), true
	}), nil
}

// CharsetGenerator returns a Generator producing count random strings of
// exactly length runes drawn from alphabet. The seed fully determines the
// sequence.
func CharsetGenerator(alphabet string, length, count int, seed int64) payload.Generator {
	return &charsetGenerator{
		alphabet: []rune(alphabet),
		length:   length,
		count:    count,
		seed:     seed,
	}
}

// CharsetStrings collects the charset-fuzz sequence into a slice.
func CharsetStrings(alphabet string, length, count int, seed int64) ([]string, error) {
	stream, err := CharsetGenerator(alphabet, length, count, seed).Payloads()
	if err != nil {
		return nil, err
	}
	return payload.Collect(stream), nil
}
