// Package verify turns response snapshots into findings. Predicates are
// pure functions over (payload, response); the evaluator folds an ordered
// list of them under a configurable policy and contains predicate panics
// so a bad predicate can never take down a scan.
package verify

import (
	"fmt"
	"strings"

	"github.com/injectest/injectest/pkg/dispatch"
	"github.com/injectest/injectest/pkg/finding"
	"github.com/injectest/injectest/pkg/xpath"
)

// Predicate inspects one response. A nil finding means the predicate did
// not flag it; an error means the predicate could not judge it.
// Predicates must not mutate the response.
type Predicate interface {
	// Name identifies the predicate in findings and logs.
	Name() string

	Verify(payload string, resp *dispatch.Response) (*finding.Finding, error)
}

// Func adapts a plain function to the Predicate interface.
type Func struct {
	ID string
	Fn func(payload string, resp *dispatch.Response) (*finding.Finding, error)
}

func (f Func) Name() string { return f.ID }

func (f Func) Verify(payload string, resp *dispatch.Response) (*finding.Finding, error) {
	return f.Fn(payload, resp)
}

// AllowStatus flags any response whose status code is outside the allow
// set. An empty allow set defaults to 200.
func AllowStatus(codes ...int) Predicate {
	allowed := make(map[int]bool, len(codes))
	for _, c := range codes {
		allowed[c] = true
	}
	if len(allowed) == 0 {
		allowed[200] = true
	}
	return Func{
		ID: "allow-status",
		Fn: func(payload string, resp *dispatch.Response) (*finding.Finding, error) {
			if allowed[resp.StatusCode] {
				return nil, nil
			}
			return finding.New("allow-status", finding.Medium,
				fmt.Sprintf("status %d outside allow set", resp.StatusCode),
				finding.Evidence{Payload: payload, Response: resp.Snapshot()},
			), nil
		},
	}
}

// ReflectsPayload flags responses that echo the raw payload back in the
// body, the classic reflection signal.
func ReflectsPayload() Predicate {
	return Func{
		ID: "reflects-payload",
		Fn: func(payload string, resp *dispatch.Response) (*finding.Finding, error) {
			if payload == "" || !strings.Contains(resp.BodyString(), payload) {
				return nil, nil
			}
			return finding.New("reflects-payload", finding.High,
				"payload reflected verbatim in response body",
				finding.Evidence{Payload: payload, Response: resp.Snapshot()},
			), nil
		},
	}
}

// ErrorPatterns flags responses whose body contains an XPath or XML
// evaluator error string, indicating the payload reached a query engine.
func ErrorPatterns() Predicate {
	indicators := xpath.ErrorIndicators()
	return Func{
		ID: "error-patterns",
		Fn: func(payload string, resp *dispatch.Response) (*finding.Finding, error) {
			body := strings.ToLower(resp.BodyString())
			for _, ind := range indicators {
				if strings.Contains(body, strings.ToLower(ind)) {
					return finding.New("error-patterns", finding.High,
						fmt.Sprintf("evaluator error %q in response", ind),
						finding.Evidence{Payload: payload, Response: resp.Snapshot()},
					), nil
				}
			}
			return nil, nil
		},
	}
}

// Policy controls how the evaluator folds predicate results.
type Policy int

const (
	// FirstMatch stops at the first predicate that flags the response.
	FirstMatch Policy = iota

	// AllMatches runs every predicate and records every flag.
	AllMatches
)

// Eval runs the predicates in order under the given policy. Findings
// come back in predicate order. A predicate error or panic aborts that
// predicate only and surfaces as a finding.ErrVerification; findings
// gathered before the failure are still returned.
func Eval(preds []Predicate, policy Policy, payload string, resp *dispatch.Response) ([]*finding.Finding, error) {
	var found []*finding.Finding
	for _, p := range preds {
		f, err := runOne(p, payload, resp)
		if err != nil {
			return found, err
		}
		if f == nil {
			continue
		}
		found = append(found, f)
		if policy == FirstMatch {
			break
		}
	}
	return found, nil
}

// runOne contains panics from a single predicate.
func runOne(p Predicate, payload string, resp *dispatch.Response) (f *finding.Finding, err error) {
	defer func() {
		if r := recover(); r != nil {
			f = nil
			err = fmt.Errorf("%w: predicate %s panicked: %v", finding.ErrVerification, p.Name(), r)
		}
	}()
	f, err = p.Verify(payload, resp)
	if err != nil {
		return nil, fmt.Errorf("%w: predicate %s: %v", finding.ErrVerification, p.Name(), err)
	}
	return f, nil
}
