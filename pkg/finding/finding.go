package finding

import (
	"time"

	"github.com/google/uuid"
)

// Evidence captures what was sent and what came back for one flagged
// attempt. Snapshots are single-line renderings suitable for a report.
type Evidence struct {
	Payload  string `json:"payload"`
	Request  string `json:"request"`
	Response string `json:"response,omitempty"`
}

// Finding is one confirmed detection: a payload that produced a response
// the verification layer flagged.
type Finding struct {
	ID        string    `json:"id"`
	Detector  string    `json:"detector"`
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
	Evidence  Evidence  `json:"evidence"`
	Timestamp time.Time `json:"timestamp"`
}

// New builds a Finding with a fresh ID and timestamp.
func New(detector string, severity Severity, message string, ev Evidence) *Finding {
	return &Finding{
		ID:        uuid.NewString(),
		Detector:  detector,
		Severity:  severity,
		Message:   message,
		Evidence:  ev,
		Timestamp: time.Now().UTC(),
	}
}

// Inconclusive records an attempt that could not be judged: the request
// never completed or a predicate failed. Inconclusives are counted, never
// treated as findings.
type Inconclusive struct {
	Payload string `json:"payload"`
	Point   string `json:"point"`
	Reason  string `json:"reason"`
}

// Report is the append-only aggregate a scan session builds up. An empty
// report means the target passed. Report is not safe for concurrent use;
// the session funnels all writes through a single collector.
type Report struct {
	Target       string         `json:"target"`
	StartTime    time.Time      `json:"start_time,omitempty"`
	Duration     time.Duration  `json:"duration,omitempty,format:nano"`
	Attempts     int            `json:"attempts"`
	Findings     []Finding      `json:"findings"`
	Inconclusive []Inconclusive `json:"inconclusive,omitempty"`
}

// NewReport returns an empty report for the given target.
func NewReport(target string) *Report {
	return &Report{Target: target, Findings: []Finding{}}
}

// Add appends a finding in completion order.
func (r *Report) Add(f *Finding) {
	r.Findings = append(r.Findings, *f)
}

// AddInconclusive records an attempt that produced no verdict.
func (r *Report) AddInconclusive(inc Inconclusive) {
	r.Inconclusive = append(r.Inconclusive, inc)
}

// Empty reports whether the scan produced no findings.
func (r *Report) Empty() bool {
	return len(r.Findings) == 0
}

// MaxSeverity returns the highest severity present, or "" for an empty
// report.
func (r *Report) MaxSeverity() Severity {
	var max Severity
	for _, f := range r.Findings {
		if f.Severity.Score() > max.Score() {
			max = f.Severity
		}
	}
	return max
}
