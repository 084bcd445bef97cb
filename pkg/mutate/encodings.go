package mutate

import (
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/injectest/injectest/pkg/payload"
)

// SubstituteMarker is the rune that single-byte charsets substitute for
// runes outside their repertoire (ASCII SUB). Payloads containing it signal
// a lossy re-encoding rather than an encoder failure.
const SubstituteMarker = '\x1a'

// Charset pairs a human-readable name with its x/text encoding.
type Charset struct {
	Name     string
	Encoding encoding.Encoding
}

// DefaultCharsets returns the charsets exercised by the encoding generator:
// a UTF pair that round-trips any input plus the single-byte charsets that
// force substitution on non-Latin input.
func DefaultCharsets() []Charset {
	return []Charset{
		{Name: "utf-8", Encoding: unicode.UTF8},
		{Name: "utf-16le", Encoding: unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)},
		{Name: "iso-8859-1", Encoding: charmap.ISO8859_1},
		{Name: "windows-1252", Encoding: charmap.Windows1252},
	}
}

// Recode re-encodes s into the target charset and decodes the result back
// to a UTF-8 payload string. Runes the charset cannot represent are
// substituted with the charset's replacement marker instead of failing;
// when the charset represents every rune of s, the result equals s.
func Recode(s string, cs Charset) (string, error) {
	enc := encoding.ReplaceUnsupported(cs.Encoding.NewEncoder())
	raw, err := enc.String(s)
	if err != nil {
		return "", fmt.Errorf("mutate: encode to %s: %w", cs.Name, err)
	}
	out, err := cs.Encoding.NewDecoder().String(raw)
	if err != nil {
		return "", fmt.Errorf("mutate: decode from %s: %w", cs.Name, err)
	}
	return out, nil
}

// EncodingVariants re-encodes s into each charset. Charsets that fail
// outright (none of the defaults do) are skipped rather than aborting the
// variant set.
func EncodingVariants(s string, charsets ...Charset) []string {
	if len(charsets) == 0 {
		charsets = DefaultCharsets()
	}
	variants := make([]string, 0, len(charsets))
	for _, cs := range charsets {
		v, err := Recode(s, cs)
		if err != nil {
			continue
		}
		variants = append(variants, v)
	}
	return variants
}

// encodingGenerator adapts EncodingVariants to the payload contract.
type encodingGenerator struct {
	input    string
	charsets []Charset
}

func (g *encodingGenerator) Name() string { return "encoding-variation" }

func (g *encodingGenerator) Payloads() (payload.Stream, error) {
	if g.input == "" {
		return nil, payload.GenerationErrorf("encoding variation needs a non-empty input")
	}
	return payload.FromSlice(EncodingVariants(g.input, g.charsets...)), nil
}

// EncodingGenerator returns a Generator over re-encodings of input.
// Passing no charsets selects DefaultCharsets.
func EncodingGenerator(input string, charsets ...Charset) payload.Generator {
	return &encodingGenerator{input: input, charsets: charsets}
}
