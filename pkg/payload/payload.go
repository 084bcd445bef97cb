// Package payload defines the generator contract shared by all payload
// packages: a lazy, restartable sequence of adversarial string values.
// Generators are deterministic: re-requesting the sequence with the same
// parameters (including any seed) reproduces the identical values, which is
// what makes sequential scan replay possible.
package payload

import (
	"errors"
	"fmt"
)

// ErrGeneration is the sentinel for invalid generator parameters.
// Callers should use errors.Is() to check for it.
var ErrGeneration = errors.New("payload: invalid generator parameters")

// GenerationErrorf wraps ErrGeneration with detail about the bad parameter.
func GenerationErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrGeneration, fmt.Sprintf(format, args...))
}

// Stream is a lazy sequence of payloads. Next returns the next value and
// true, or the zero value and false once the sequence is exhausted.
// Streams are single-use; obtain a fresh one from the Generator to restart.
type Stream interface {
	Next() (string, bool)
}

// Generator produces a named, restartable payload sequence.
// Payloads returns a fresh Stream positioned at the start; implementations
// validate their parameters here (or at construction) and report
// ErrGeneration before any value is produced.
type Generator interface {
	Name() string
	Payloads() (Stream, error)
}

// sliceStream iterates over a fixed slice.
type sliceStream struct {
	values []string
	pos    int
}

func (s *sliceStream) Next() (string, bool) {
	if s.pos >= len(s.values) {
		return "", false
	}
	v := s.values[s.pos]
	s.pos++
	return v, true
}

// FromSlice returns a Stream over the given values.
func FromSlice(values []string) Stream {
	return &sliceStream{values: values}
}

// funcStream adapts a next-function to the Stream interface.
type funcStream struct {
	next func() (string, bool)
}

func (s *funcStream) Next() (string, bool) { return s.next() }

// FromFunc returns a Stream backed by next. The function owns its own
// cursor state; it is called until it reports false.
func FromFunc(next func() (string, bool)) Stream {
	return &funcStream{next: next}
}

// sliceGenerator is a Generator over a fixed value set.
type sliceGenerator struct {
	name   string
	values []string
}

func (g *sliceGenerator) Name() string { return g.name }

func (g *sliceGenerator) Payloads() (Stream, error) {
	return FromSlice(g.values), nil
}

// Slice wraps a fixed value set as a named Generator.
// The sequence restarts from the first value on every Payloads call.
func Slice(name string, values ...string) Generator {
	return &sliceGenerator{name: name, values: values}
}

// Collect drains the stream into a slice. Only safe for finite streams.
func Collect(s Stream) []string {
	var out []string
	for v, ok := s.Next(); ok; v, ok = s.Next() {
		out = append(out, v)
	}
	return out
}

// CollectN drains at most n values from the stream.
func CollectN(s Stream, n int) []string {
	out := make([]string, 0, n)
	for len(out) < n {
		v, ok := s.Next()
		if !ok {
			break
		}
		out = append(out, v)
	}
	return out
}

// Take caps a stream at n values. Useful for bounding capped-infinite
// generators before handing them to a scan.
func Take(s Stream, n int) Stream {
	remaining := n
	return FromFunc(func() (string, bool) {
		if remaining <= 0 {
			return "", false
		}
		remaining--
		return s.Next()
	})
}
