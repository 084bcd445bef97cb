// Package inject binds payload generators to injection points of a request
// template. A Point is a closed variant over the four injectable locations;
// the Composer crosses a payload sequence with the registered points,
// yielding one template copy per (payload, point) pair.
package inject

import (
	"fmt"
	"strings"

	"github.com/injectest/injectest/pkg/jsonutil"
	"github.com/injectest/injectest/pkg/payload"
	"github.com/injectest/injectest/pkg/request"
)

// Kind discriminates the injection point variants.
type Kind int

const (
	KindQueryParam Kind = iota
	KindPathSegment
	KindHeader
	KindBodyField
)

func (k Kind) String() string {
	switch k {
	case KindQueryParam:
		return "query"
	case KindPathSegment:
		return "path"
	case KindHeader:
		return "header"
	case KindBodyField:
		return "body"
	}
	return "unknown"
}

// Point identifies one injectable location in a template. Points are
// values; construct them with QueryParam, PathSegment, Header, or
// BodyField.
type Point struct {
	kind  Kind
	name  string
	index int
}

// QueryParam targets the named query parameter.
func QueryParam(name string) Point {
	return Point{kind: KindQueryParam, name: name}
}

// PathSegment targets the route segment at index.
func PathSegment(index int) Point {
	return Point{kind: KindPathSegment, index: index}
}

// Header targets the named request header.
func Header(name string) Point {
	return Point{kind: KindHeader, name: name}
}

// BodyField targets a dotted path into a JSON request body, e.g.
// "user.name".
func BodyField(path string) Point {
	return Point{kind: KindBodyField, name: path}
}

// Kind returns the point's variant.
func (p Point) Kind() Kind { return p.kind }

func (p Point) String() string {
	if p.kind == KindPathSegment {
		return fmt.Sprintf("path[%d]", p.index)
	}
	return fmt.Sprintf("%s[%s]", p.kind, p.name)
}

// Validate checks the point against the template. Mismatches are
// configuration errors, caught before any dispatch.
func (p Point) Validate(t *request.Template) error {
	switch p.kind {
	case KindQueryParam:
		if !t.HasParam(p.name) {
			return fmt.Errorf("%w: injection point %s: template has no such parameter",
				request.ErrConfiguration, p)
		}
	case KindPathSegment:
		if p.index < 0 || p.index >= len(t.Segments()) {
			return fmt.Errorf("%w: injection point %s: template has %d route segments",
				request.ErrConfiguration, p, len(t.Segments()))
		}
	case KindHeader:
		if p.name == "" {
			return fmt.Errorf("%w: header injection point needs a name", request.ErrConfiguration)
		}
	case KindBodyField:
		if _, err := setBodyField(t.Body(), p.name, "probe"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: unknown injection point kind %d", request.ErrConfiguration, p.kind)
	}
	return nil
}

// Apply substitutes value into a copy of t at this point. The original
// template is untouched; exactly one field differs in the returned copy.
func (p Point) Apply(t *request.Template, value string) (*request.Template, error) {
	switch p.kind {
	case KindQueryParam:
		return t.WithParamValue(p.name, value)
	case KindPathSegment:
		return t.WithSegment(p.index, value)
	case KindHeader:
		return t.WithHeader(p.name, value)
	case KindBodyField:
		body, err := setBodyField(t.Body(), p.name, value)
		if err != nil {
			return nil, err
		}
		return t.WithBody(body)
	}
	return nil, fmt.Errorf("%w: unknown injection point kind %d", request.ErrConfiguration, p.kind)
}

// setBodyField rewrites the leaf of a dotted path in a JSON object body.
// Intermediate objects must already exist in the template body.
func setBodyField(body, path, value string) (string, error) {
	if body == "" {
		return "", fmt.Errorf("%w: body injection into a template without a body",
			request.ErrConfiguration)
	}
	var doc map[string]any
	if err := jsonutil.Unmarshal([]byte(body), &doc); err != nil {
		return "", fmt.Errorf("%w: body is not a JSON object: %v", request.ErrConfiguration, err)
	}

	keys := strings.Split(path, ".")
	node := doc
	for _, key := range keys[:len(keys)-1] {
		child, ok := node[key].(map[string]any)
		if !ok {
			return "", fmt.Errorf("%w: body has no object at %q in path %q",
				request.ErrConfiguration, key, path)
		}
		node = child
	}
	node[keys[len(keys)-1]] = value

	out, err := jsonutil.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("inject: re-encode body: %w", err)
	}
	return string(out), nil
}

// Bound is one concrete injection attempt: the payload, the point it was
// substituted at, and the resulting template copy.
type Bound struct {
	Payload string
	Point   Point
	Request *request.Template
}

// Stream lazily yields Bound requests.
type Stream interface {
	Next() (Bound, bool, error)
}

// Composer crosses a generator's payload sequence with a set of injection
// points against one canonical template.
type Composer struct {
	template *request.Template
	gen      payload.Generator
	points   []Point
}

// NewComposer validates the points and the generator against the template
// and returns a Composer. No registered points, a point the template
// cannot satisfy, or invalid generator parameters fail here, before any
// session is built.
func NewComposer(t *request.Template, gen payload.Generator, points ...Point) (*Composer, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: composer needs a template", request.ErrConfiguration)
	}
	if gen == nil {
		return nil, fmt.Errorf("%w: composer needs a generator", request.ErrConfiguration)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: no injection points registered", request.ErrConfiguration)
	}
	for _, p := range points {
		if err := p.Validate(t); err != nil {
			return nil, err
		}
	}
	// Surfaces generator parameter problems at build time. The stream is
	// discarded; Requests starts a fresh one.
	if _, err := gen.Payloads(); err != nil {
		return nil, err
	}
	return &Composer{template: t, gen: gen, points: points}, nil
}

// Template returns the canonical template the composer injects into.
func (c *Composer) Template() *request.Template { return c.template }

// Points returns the registered injection points.
func (c *Composer) Points() []Point { return append([]Point(nil), c.points...) }

// GeneratorName returns the bound generator's name.
func (c *Composer) GeneratorName() string { return c.gen.Name() }

// Requests returns a fresh stream of concrete requests: payload-major
// order, so capped-infinite generators still make progress across points.
func (c *Composer) Requests() (Stream, error) {
	payloads, err := c.gen.Payloads()
	if err != nil {
		return nil, err
	}
	return &boundStream{composer: c, payloads: payloads, pointIdx: len(c.points)}, nil
}

type boundStream struct {
	composer *Composer
	payloads payload.Stream
	current  string
	pointIdx int // len(points) forces a payload fetch on first Next
}

func (s *boundStream) Next() (Bound, bool, error) {
	if s.pointIdx >= len(s.composer.points) {
		v, ok := s.payloads.Next()
		if !ok {
			return Bound{}, false, nil
		}
		s.current = v
		s.pointIdx = 0
	}
	point := s.composer.points[s.pointIdx]
	s.pointIdx++

	req, err := point.Apply(s.composer.template, s.current)
	if err != nil {
		return Bound{}, false, err
	}
	return Bound{Payload: s.current, Point: point, Request: req}, true, nil
}
