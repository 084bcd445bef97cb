package scan

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/injectest/injectest/pkg/dispatch"
	"github.com/injectest/injectest/pkg/finding"
	"github.com/injectest/injectest/pkg/inject"
	"github.com/injectest/injectest/pkg/payload"
	"github.com/injectest/injectest/pkg/request"
	"github.com/injectest/injectest/pkg/verify"
)

func composerFor(t *testing.T, baseURL string, gen payload.Generator) *inject.Composer {
	t.Helper()
	tmpl, err := request.New("GET", baseURL).
		Routes("search").
		Param("q", "baseline").
		Build()
	if err != nil {
		t.Fatalf("template: %v", err)
	}
	c, err := inject.NewComposer(tmpl, gen, inject.QueryParam("q"))
	if err != nil {
		t.Fatalf("composer: %v", err)
	}
	return c
}

func dispatcherFor(t *testing.T, srv *httptest.Server) dispatch.Dispatcher {
	t.Helper()
	d, err := dispatch.NewHTTP(dispatch.Config{Client: srv.Client()})
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	return d
}

func baseConfig() Config {
	return Config{
		Concurrency:    4,
		RequestTimeout: 2 * time.Second,
	}
}

func TestNewValidation(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	c := composerFor(t, srv.URL, payload.Slice("g", "a"))
	d := dispatcherFor(t, srv)
	preds := []verify.Predicate{verify.AllowStatus(200)}

	tests := []struct {
		name string
		fn   func() (*Session, error)
	}{
		{"nil composer", func() (*Session, error) { return New(nil, d, preds, baseConfig()) }},
		{"nil dispatcher", func() (*Session, error) { return New(c, nil, preds, baseConfig()) }},
		{"no predicates", func() (*Session, error) { return New(c, d, nil, baseConfig()) }},
		{"missing timeout", func() (*Session, error) {
			cfg := baseConfig()
			cfg.RequestTimeout = 0
			return New(c, d, preds, cfg)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.fn(); !errors.Is(err, request.ErrConfiguration) {
				t.Errorf("error = %v, want ErrConfiguration", err)
			}
		})
	}
}

func TestRunCleanTarget(t *testing.T) {
	// A hardened target: always 200, never reflects.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("no results"))
	}))
	defer srv.Close()

	s, err := New(
		composerFor(t, srv.URL, payload.Slice("g", "p1", "p2", "p3")),
		dispatcherFor(t, srv),
		[]verify.Predicate{verify.AllowStatus(200), verify.ReflectsPayload()},
		baseConfig(),
	)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if s.State() != Built {
		t.Errorf("state = %s, want built", s.State())
	}

	report, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if !report.Empty() {
		t.Errorf("clean target produced %d findings", len(report.Findings))
	}
	if report.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", report.Attempts)
	}
	if s.State() != Completed {
		t.Errorf("state = %s, want completed", s.State())
	}
}

func TestRunFlagsVulnerableTarget(t *testing.T) {
	// Reflects the query parameter verbatim when it carries a marker.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		if strings.Contains(q, "evil") {
			w.Write([]byte("results for " + q))
			return
		}
		w.Write([]byte("no results"))
	}))
	defer srv.Close()

	s, err := New(
		composerFor(t, srv.URL, payload.Slice("g", "benign", "evil-one", "evil-two")),
		dispatcherFor(t, srv),
		[]verify.Predicate{verify.AllowStatus(200), verify.ReflectsPayload()},
		baseConfig(),
	)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	report, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(report.Findings) != 2 {
		t.Fatalf("findings = %d, want 2", len(report.Findings))
	}
	for _, f := range report.Findings {
		if f.Detector != "reflects-payload" {
			t.Errorf("detector = %q, want reflects-payload", f.Detector)
		}
		if !strings.Contains(f.Evidence.Payload, "evil") {
			t.Errorf("evidence payload = %q, want the injected value", f.Evidence.Payload)
		}
		if f.Evidence.Request == "" {
			t.Error("finding lacks a request snapshot")
		}
	}
}

func TestRunStatusAllowList(t *testing.T) {
	// Three payloads against an allow set of {400,404,204}. One payload
	// slips through to a 200, which is exactly one medium finding; when
	// every response is in the set the report is empty.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("q") {
		case "alpha":
			w.WriteHeader(http.StatusBadRequest)
		case "beta":
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("unexpected success"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	preds := []verify.Predicate{verify.AllowStatus(400, 404, 204)}

	s, err := New(
		composerFor(t, srv.URL, payload.Slice("g", "alpha", "beta", "gamma")),
		dispatcherFor(t, srv),
		preds,
		baseConfig(),
	)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	report, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(report.Findings) != 1 {
		t.Fatalf("findings = %d, want 1", len(report.Findings))
	}
	f := report.Findings[0]
	if f.Severity != finding.Medium {
		t.Errorf("severity = %s, want medium", f.Severity)
	}
	if f.Evidence.Payload != "beta" {
		t.Errorf("evidence payload = %q, want the escaping payload", f.Evidence.Payload)
	}

	// Same set minus the escaping payload: everything lands in the allow
	// set and the report stays empty.
	s2, err := New(
		composerFor(t, srv.URL, payload.Slice("g", "alpha", "gamma")),
		dispatcherFor(t, srv),
		preds,
		baseConfig(),
	)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	report, err = s2.Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if !report.Empty() {
		t.Errorf("allowed-only responses produced %d findings", len(report.Findings))
	}
}

func TestRunOrderStableAtConcurrencyOne(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("echo " + r.URL.Query().Get("q")))
	}))
	defer srv.Close()

	run := func() []string {
		cfg := baseConfig()
		cfg.Concurrency = 1
		s, err := New(
			composerFor(t, srv.URL, payload.Slice("g", "aa", "bb", "cc")),
			dispatcherFor(t, srv),
			[]verify.Predicate{verify.ReflectsPayload()},
			cfg,
		)
		if err != nil {
			t.Fatalf("New error: %v", err)
		}
		report, err := s.Run(context.Background())
		if err != nil {
			t.Fatalf("Run error: %v", err)
		}
		var order []string
		for _, f := range report.Findings {
			order = append(order, f.Evidence.Payload)
		}
		return order
	}

	first := run()
	second := run()
	if len(first) != 3 {
		t.Fatalf("findings = %d, want 3", len(first))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("finding %d order differs across runs: %q vs %q", i, first[i], second[i])
		}
	}
}

func TestRunBudgetCompletes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	cfg := baseConfig()
	cfg.Budget = 2
	s, err := New(
		composerFor(t, srv.URL, payload.Slice("g", "a", "b", "c", "d")),
		dispatcherFor(t, srv),
		[]verify.Predicate{verify.AllowStatus(200)},
		cfg,
	)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	report, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("budget exhaustion must not error: %v", err)
	}
	if report.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", report.Attempts)
	}
	if s.State() != Completed {
		t.Errorf("state = %s, want completed", s.State())
	}
}

func TestRunCancellationPreservesFindings(t *testing.T) {
	release := make(chan struct{})
	var once bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !once {
			once = true
			w.Write([]byte("echo " + r.URL.Query().Get("q")))
			return
		}
		<-release
	}))
	defer srv.Close()
	defer close(release)

	cfg := baseConfig()
	cfg.Concurrency = 1
	cfg.RequestTimeout = 5 * time.Second
	s, err := New(
		composerFor(t, srv.URL, payload.Slice("g", "first", "second", "third")),
		dispatcherFor(t, srv),
		[]verify.Predicate{verify.ReflectsPayload()},
		cfg,
	)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()

	report, err := s.Run(ctx)
	if err != nil {
		t.Fatalf("cancellation must not error: %v", err)
	}
	if s.State() != Cancelled {
		t.Errorf("state = %s, want cancelled", s.State())
	}
	if len(report.Findings) != 1 || report.Findings[0].Evidence.Payload != "first" {
		t.Errorf("findings collected before cancellation were lost: %+v", report.Findings)
	}
}

func TestRunDeadlineLetsInFlightFinish(t *testing.T) {
	// Each request takes well past the scan deadline. The deadline must
	// only stop issuing: the in-flight request finishes under its own
	// timeout and its finding is kept, not misfiled as a timeout.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte("echo " + r.URL.Query().Get("q")))
	}))
	defer srv.Close()

	cfg := baseConfig()
	cfg.Concurrency = 1
	cfg.Deadline = 100 * time.Millisecond
	s, err := New(
		composerFor(t, srv.URL, payload.Slice("g", "first", "second", "third")),
		dispatcherFor(t, srv),
		[]verify.Predicate{verify.ReflectsPayload()},
		cfg,
	)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	report, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if s.State() != Completed {
		t.Errorf("state = %s, want completed (internal deadline, not cancellation)", s.State())
	}
	if report.Attempts != 1 {
		t.Errorf("attempts = %d, want 1 (deadline stops issuing after the first)", report.Attempts)
	}
	if len(report.Inconclusive) != 0 {
		t.Errorf("inconclusive = %+v, want none; the in-flight request must finish", report.Inconclusive)
	}
	if len(report.Findings) != 1 || report.Findings[0].Evidence.Payload != "first" {
		t.Errorf("findings = %+v, want the in-flight reflection", report.Findings)
	}
}

func TestRunDispatchFailuresAreInconclusive(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close() // every request is refused

	d, err := dispatch.NewHTTP(dispatch.Config{})
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	s, err := New(
		composerFor(t, url, payload.Slice("g", "a", "b")),
		d,
		[]verify.Predicate{verify.AllowStatus(200)},
		baseConfig(),
	)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	report, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("unreachable target must not abort the scan: %v", err)
	}
	if len(report.Inconclusive) != 2 {
		t.Errorf("inconclusive = %d, want 2", len(report.Inconclusive))
	}
	if !report.Empty() {
		t.Error("dispatch failures leaked into findings")
	}
	if s.State() != Completed {
		t.Errorf("state = %s, want completed", s.State())
	}
}

func TestRunIsSingleUse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	s, err := New(
		composerFor(t, srv.URL, payload.Slice("g", "a")),
		dispatcherFor(t, srv),
		[]verify.Predicate{verify.AllowStatus(200)},
		baseConfig(),
	)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("first Run error: %v", err)
	}
	if _, err := s.Run(context.Background()); !errors.Is(err, request.ErrConfiguration) {
		t.Errorf("second Run error = %v, want ErrConfiguration", err)
	}
}

func TestRunGenerationErrorAborts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	// Passes composer validation, then fails when Run restarts the
	// sequence. Run must abort with the generation error, not dispatch.
	bad := &flakyGenerator{}
	tmpl, err := request.New("GET", srv.URL).Param("q", "x").Build()
	if err != nil {
		t.Fatalf("template: %v", err)
	}
	c, err := inject.NewComposer(tmpl, bad, inject.QueryParam("q"))
	if err != nil {
		t.Fatalf("composer: %v", err)
	}
	s, err := New(c, dispatcherFor(t, srv), []verify.Predicate{verify.AllowStatus(200)}, baseConfig())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if _, err := s.Run(context.Background()); !errors.Is(err, payload.ErrGeneration) {
		t.Errorf("Run error = %v, want ErrGeneration", err)
	}
}

// flakyGenerator validates clean, then breaks on the next restart.
type flakyGenerator struct {
	calls int
}

func (*flakyGenerator) Name() string { return "flaky" }

func (g *flakyGenerator) Payloads() (payload.Stream, error) {
	g.calls++
	if g.calls > 1 {
		return nil, payload.GenerationErrorf("source exhausted")
	}
	return payload.FromSlice(nil), nil
}
