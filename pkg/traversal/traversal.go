// Package traversal generates path traversal payloads: repeated
// parent-directory markers in plain or percent-encoded form, with forward
// or backward slashes, optionally followed by a target filename.
package traversal

import (
	"math/rand"
	"regexp"
	"strings"

	"github.com/injectest/injectest/pkg/payload"
)

// markers are the parent-directory sequences a traversal payload repeats.
// Plain and percent-encoded forms, both separator styles.
var markers = []string{
	"../",
	"..\\",
	"..%2f",
	"..%5c",
	"%2e%2e/",
	"%2e%2e\\",
	"%2e%2e%2f",
	"%2e%2e%5c",
}

var canonical = regexp.MustCompile(
	`(?i)^((\.\.|%2e%2e)(/|\\|%2f|%5c))+([A-Za-z0-9_\-.]+)?$`,
)

// Pattern returns the canonical traversal pattern. Every payload this
// package produces matches it, regardless of separator or encoding variant.
func Pattern() *regexp.Regexp {
	return canonical
}

// Markers returns the parent-directory marker variants.
func Markers() []string {
	return append([]string(nil), markers...)
}

// Sequences returns one pure traversal string per marker variant, each
// repeating its marker depth times.
func Sequences(depth int) ([]string, error) {
	if depth < 1 {
		return nil, payload.GenerationErrorf("traversal depth must be at least 1, got %d", depth)
	}
	out := make([]string, 0, len(markers))
	for _, m := range markers {
		out = append(out, strings.Repeat(m, depth))
	}
	return out, nil
}

// WithFilename appends filename verbatim to each traversal sequence.
func WithFilename(depth int, filename string) ([]string, error) {
	if filename == "" {
		return nil, payload.GenerationErrorf("traversal filename cannot be empty")
	}
	seqs, err := Sequences(depth)
	if err != nil {
		return nil, err
	}
	for i, s := range seqs {
		seqs[i] = s + filename
	}
	return seqs, nil
}

// WithRandomFilename appends a seeded random name plus ext to each
// traversal sequence. The extension gains a leading dot if missing; the
// seed fully determines the generated names.
func WithRandomFilename(depth int, ext string, seed int64) ([]string, error) {
	if ext == "" {
		return nil, payload.GenerationErrorf("traversal extension cannot be empty")
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	seqs, err := Sequences(depth)
	if err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(seed))
	for i, s := range seqs {
		seqs[i] = s + randomName(rng, 8) + ext
	}
	return seqs, nil
}

const nameAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

func randomName(rng *rand.Rand, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = nameAlphabet[rng.Intn(len(nameAlphabet))]
	}
	return string(b)
}

// Generator configures the traversal payload generator. Exactly one of
// Filename or Extension may be set: Filename produces the fixed-target
// variant, Extension the random-name variant, neither the pure variant.
type Generator struct {
	Depth     int
	Filename  string
	Extension string
	Seed      int64
}

// Name implements payload.Generator.
func (g *Generator) Name() string { return "path-traversal" }

// Payloads implements payload.Generator.
func (g *Generator) Payloads() (payload.Stream, error) {
	if g.Filename != "" && g.Extension != "" {
		return nil, payload.GenerationErrorf("traversal takes a filename or an extension, not both")
	}
	var (
		values []string
		err    error
	)
	switch {
	case g.Filename != "":
		values, err = WithFilename(g.Depth, g.Filename)
	case g.Extension != "":
		values, err = WithRandomFilename(g.Depth, g.Extension, g.Seed)
	default:
		values, err = Sequences(g.Depth)
	}
	if err != nil {
		return nil, err
	}
	return payload.FromSlice(values), nil
}
