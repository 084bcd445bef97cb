// Package finding provides the shared result types for injection scans:
// severity levels, evidence bundles, individual findings, and the
// append-only report a scan session accumulates them into.
//
// Every detection path produces the same canonical Finding shape so
// reports can be rendered, filtered, and compared uniformly regardless
// of which predicate flagged the response.
package finding
