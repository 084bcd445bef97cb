package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/injectest/injectest/pkg/httpclient"
	"github.com/injectest/injectest/pkg/inject"
	"github.com/injectest/injectest/pkg/mutate"
	"github.com/injectest/injectest/pkg/payload"
	"github.com/injectest/injectest/pkg/request"
	"github.com/injectest/injectest/pkg/traversal"
	"github.com/injectest/injectest/pkg/verify"
	"github.com/injectest/injectest/pkg/wordlist"
	"github.com/injectest/injectest/pkg/xmlbomb"
	"github.com/injectest/injectest/pkg/xpath"
	"github.com/injectest/injectest/pkg/xss"
)

// BuildTemplate assembles the immutable request template.
func (c *Config) BuildTemplate() (*request.Template, error) {
	b := request.New(c.Method, c.Target)
	if len(c.Routes) > 0 {
		b = b.Routes(c.Routes...)
	}
	for _, p := range c.Params {
		b = b.Param(p.Name, p.Value)
	}
	for _, h := range c.Headers {
		b = b.Header(h.Name, h.Value)
	}
	if c.Body != "" {
		b = b.Body(c.Body)
	}
	return b.Build()
}

// ParsePoint turns a "kind:arg" spec into an injection point.
func ParsePoint(spec string) (inject.Point, error) {
	kind, arg, ok := strings.Cut(spec, ":")
	if !ok {
		return inject.Point{}, fmt.Errorf("%w: injection point %q needs kind:arg", ErrInvalidConfig, spec)
	}
	switch kind {
	case "query":
		return inject.QueryParam(arg), nil
	case "path":
		idx, err := strconv.Atoi(arg)
		if err != nil {
			return inject.Point{}, fmt.Errorf("%w: path point index %q", ErrInvalidConfig, arg)
		}
		return inject.PathSegment(idx), nil
	case "header":
		return inject.Header(arg), nil
	case "body":
		return inject.BodyField(arg), nil
	}
	return inject.Point{}, fmt.Errorf("%w: unknown injection point kind %q", ErrInvalidConfig, kind)
}

// BuildPoints parses every configured injection point spec.
func (c *Config) BuildPoints() ([]inject.Point, error) {
	points := make([]inject.Point, 0, len(c.Points))
	for _, spec := range c.Points {
		p, err := ParsePoint(spec)
		if err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, nil
}

// BuildGenerator instantiates the configured payload generator.
func (c *Config) BuildGenerator() (payload.Generator, error) {
	g := c.Generator
	switch g.Kind {
	case "traversal":
		return &traversal.Generator{
			Depth:     g.Depth,
			Filename:  g.Filename,
			Extension: g.Extension,
			Seed:      g.Seed,
		}, nil
	case "xpath":
		return xpath.Generator(), nil
	case "xss":
		return xss.Generator(), nil
	case "case":
		if g.Input == "" {
			return nil, fmt.Errorf("%w: case generator needs gen-input", ErrMissingRequired)
		}
		return mutate.CaseGenerator(g.Input, g.CaseCap), nil
	case "encoding":
		if g.Input == "" {
			return nil, fmt.Errorf("%w: encoding generator needs gen-input", ErrMissingRequired)
		}
		return mutate.EncodingGenerator(g.Input), nil
	case "charset":
		return mutate.CharsetGenerator(g.Alphabet, g.Length, g.Count, g.Seed), nil
	case "xmlbomb":
		return xmlbomb.Generator(g.Depth, g.Width), nil
	case "passwords":
		return wordlist.PasswordGenerator(), nil
	case "usernames":
		return wordlist.UsernameGenerator(), nil
	}
	return nil, fmt.Errorf("%w: unknown generator kind %q", ErrInvalidConfig, g.Kind)
}

// BuildPredicates returns the verification chain: status allow-list,
// reflection, and evaluator error patterns, in that order.
func (c *Config) BuildPredicates() []verify.Predicate {
	return []verify.Predicate{
		verify.AllowStatus(c.AllowStatus...),
		verify.ReflectsPayload(),
		verify.ErrorPatterns(),
	}
}

// PolicyValue maps the config policy string onto the evaluator policy.
func (c *Config) PolicyValue() verify.Policy {
	if c.Policy == "all" {
		return verify.AllMatches
	}
	return verify.FirstMatch
}

// ClientConfig builds the HTTP client settings for the dispatcher.
func (c *Config) ClientConfig() httpclient.Config {
	cc := httpclient.DefaultConfig()
	cc.Timeout = c.Timeout.Std()
	cc.Proxy = c.Proxy
	cc.InsecureSkipVerify = c.SkipVerify
	return cc
}
