// Package request models the immutable HTTP request template a scan is
// built around. A template is assembled once through the Builder and never
// mutated afterward: every injected variant is a structural copy with
// exactly one field rewritten, produced by the With* methods.
package request

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrConfiguration is the sentinel for template and injection-point
// configuration mistakes. It is fatal at session build time, before any
// request is dispatched.
var ErrConfiguration = errors.New("request: invalid scan configuration")

// Param is a named query parameter with a fixed value. Parameters that are
// injection targets start with their baseline value and get rewritten per
// payload in a template copy.
type Param struct {
	Name  string
	Value string
}

// Header is a single request header. Ordered slices rather than maps keep
// rendering deterministic for replay.
type Header struct {
	Name  string
	Value string
}

// Template is an immutable request description: method, base URL, ordered
// route segments, ordered query parameters, headers, and an optional body.
type Template struct {
	method   string
	baseURL  string
	segments []string
	params   []Param
	headers  []Header
	body     string
}

// Builder assembles a Template. Zero value is unusable; start with New.
type Builder struct {
	t   Template
	err error
}

// New starts a template for the given method and base URL.
func New(method, baseURL string) *Builder {
	b := &Builder{}
	if method == "" {
		b.err = fmt.Errorf("%w: method cannot be empty", ErrConfiguration)
		return b
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		b.err = fmt.Errorf("%w: base URL %q: %v", ErrConfiguration, baseURL, err)
		return b
	}
	b.t.method = strings.ToUpper(method)
	b.t.baseURL = strings.TrimRight(baseURL, "/")
	return b
}

// Routes appends path segments, in order.
func (b *Builder) Routes(segments ...string) *Builder {
	b.t.segments = append(b.t.segments, segments...)
	return b
}

// Param adds a query parameter with its baseline value.
func (b *Builder) Param(name, value string) *Builder {
	if name == "" {
		b.err = fmt.Errorf("%w: query parameter name cannot be empty", ErrConfiguration)
		return b
	}
	b.t.params = append(b.t.params, Param{Name: name, Value: value})
	return b
}

// Header adds a request header.
func (b *Builder) Header(name, value string) *Builder {
	b.t.headers = append(b.t.headers, Header{Name: name, Value: value})
	return b
}

// Body sets the request body.
func (b *Builder) Body(body string) *Builder {
	b.t.body = body
	return b
}

// Build finalizes the template. Configuration mistakes collected along the
// way surface here.
func (b *Builder) Build() (*Template, error) {
	if b.err != nil {
		return nil, b.err
	}
	t := b.t.clone()
	return &t, nil
}

func (t *Template) clone() Template {
	c := Template{
		method:  t.method,
		baseURL: t.baseURL,
		body:    t.body,
	}
	c.segments = append([]string(nil), t.segments...)
	c.params = append([]Param(nil), t.params...)
	c.headers = append([]Header(nil), t.headers...)
	return c
}

// Clone returns a deep copy. The original is never aliased.
func (t *Template) Clone() *Template {
	c := t.clone()
	return &c
}

// Method returns the HTTP method.
func (t *Template) Method() string { return t.method }

// Segments returns a copy of the route segments.
func (t *Template) Segments() []string { return append([]string(nil), t.segments...) }

// Params returns a copy of the query parameters in declaration order.
func (t *Template) Params() []Param { return append([]Param(nil), t.params...) }

// Headers returns a copy of the headers in declaration order.
func (t *Template) Headers() []Header { return append([]Header(nil), t.headers...) }

// Body returns the request body.
func (t *Template) Body() string { return t.body }

// HasParam reports whether a query parameter with the given name exists.
func (t *Template) HasParam(name string) bool {
	for _, p := range t.params {
		if p.Name == name {
			return true
		}
	}
	return false
}

// URL renders base URL, route segments, and the encoded query string.
func (t *Template) URL() string {
	var sb strings.Builder
	sb.WriteString(t.baseURL)
	for _, seg := range t.segments {
		sb.WriteByte('/')
		sb.WriteString(url.PathEscape(seg))
	}
	if len(t.params) > 0 {
		sb.WriteByte('?')
		for i, p := range t.params {
			if i > 0 {
				sb.WriteByte('&')
			}
			sb.WriteString(url.QueryEscape(p.Name))
			sb.WriteByte('=')
			sb.WriteString(url.QueryEscape(p.Value))
		}
	}
	return sb.String()
}

// WithParamValue returns a copy with the named query parameter rewritten.
func (t *Template) WithParamValue(name, value string) (*Template, error) {
	c := t.clone()
	for i, p := range c.params {
		if p.Name == name {
			c.params[i].Value = value
			return &c, nil
		}
	}
	return nil, fmt.Errorf("%w: template has no query parameter %q", ErrConfiguration, name)
}

// WithSegment returns a copy with the route segment at index rewritten.
func (t *Template) WithSegment(index int, value string) (*Template, error) {
	if index < 0 || index >= len(t.segments) {
		return nil, fmt.Errorf("%w: template has no route segment %d", ErrConfiguration, index)
	}
	c := t.clone()
	c.segments[index] = value
	return &c, nil
}

// WithHeader returns a copy with the named header rewritten, appending it
// when the template does not carry it yet.
func (t *Template) WithHeader(name, value string) (*Template, error) {
	c := t.clone()
	for i, h := range c.headers {
		if strings.EqualFold(h.Name, name) {
			c.headers[i].Value = value
			return &c, nil
		}
	}
	c.headers = append(c.headers, Header{Name: name, Value: value})
	return &c, nil
}

// WithBody returns a copy with the body replaced.
func (t *Template) WithBody(body string) (*Template, error) {
	c := t.clone()
	c.body = body
	return &c, nil
}

// Snapshot renders the template as a single line for finding evidence.
func (t *Template) Snapshot() string {
	var sb strings.Builder
	sb.WriteString(t.method)
	sb.WriteByte(' ')
	sb.WriteString(t.URL())
	for _, h := range t.headers {
		fmt.Fprintf(&sb, " %s=%q", h.Name, h.Value)
	}
	if t.body != "" {
		fmt.Fprintf(&sb, " body=%q", t.body)
	}
	return sb.String()
}
