// Package dispatch sends composed requests to the target and captures
// bounded response snapshots. The orchestrator owns deadlines; the
// dispatcher honors whatever context it is handed and maps transport
// failures onto the finding sentinel errors.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strings"

	"github.com/injectest/injectest/pkg/finding"
	"github.com/injectest/injectest/pkg/httpclient"
	"github.com/injectest/injectest/pkg/iohelper"
	"github.com/injectest/injectest/pkg/request"
)

// Response is a read-only snapshot of what the target returned. The body
// is capped at capture time so a hostile target cannot exhaust memory.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// BodyString returns the captured body as a string.
func (r *Response) BodyString() string {
	return string(r.Body)
}

// Snapshot renders the response as a single line for finding evidence.
func (r *Response) Snapshot() string {
	var b strings.Builder
	fmt.Fprintf(&b, "status=%d", r.StatusCode)
	keys := make([]string, 0, len(r.Headers))
	for k := range r.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%q", k, r.Headers.Get(k))
	}
	body := r.BodyString()
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	fmt.Fprintf(&b, " body=%q", body)
	return b.String()
}

// Dispatcher sends one composed request and returns the response
// snapshot. Implementations must be safe for concurrent use.
type Dispatcher interface {
	Send(ctx context.Context, tmpl *request.Template) (*Response, error)
}

// Config holds dispatcher options.
type Config struct {
	// Client overrides the pooled client built from ClientConfig.
	Client *http.Client

	// ClientConfig configures the pooled client when Client is nil.
	ClientConfig httpclient.Config

	// MaxBodySize caps response body capture (default: 1MB).
	MaxBodySize int64
}

// HTTPDispatcher sends requests over a pooled HTTP client.
type HTTPDispatcher struct {
	client      *http.Client
	maxBodySize int64
}

// NewHTTP builds an HTTPDispatcher. A malformed proxy URL in the client
// config is a configuration error.
func NewHTTP(cfg Config) (*HTTPDispatcher, error) {
	client := cfg.Client
	if client == nil {
		var err error
		client, err = httpclient.New(cfg.ClientConfig)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", request.ErrConfiguration, err)
		}
	}
	maxBody := cfg.MaxBodySize
	if maxBody <= 0 {
		maxBody = iohelper.DefaultMaxBodySize
	}
	return &HTTPDispatcher{client: client, maxBodySize: maxBody}, nil
}

// Send renders the template, executes it, and captures a bounded
// snapshot. Timeouts and unreachable targets come back as the finding
// sentinels so the orchestrator can count them as inconclusive.
func (d *HTTPDispatcher) Send(ctx context.Context, tmpl *request.Template) (*Response, error) {
	var body *strings.Reader
	if tmpl.Body() != "" {
		body = strings.NewReader(tmpl.Body())
	} else {
		body = strings.NewReader("")
	}

	req, err := http.NewRequestWithContext(ctx, tmpl.Method(), tmpl.URL(), body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", request.ErrConfiguration, err)
	}
	for _, h := range tmpl.Headers() {
		req.Header.Set(h.Name, h.Value)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, classify(err)
	}
	defer iohelper.DrainAndClose(resp.Body)

	data, err := iohelper.ReadBody(resp.Body, d.maxBodySize)
	if err != nil {
		return nil, classify(err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header.Clone(),
		Body:       data,
	}, nil
}

// classify maps transport errors onto the finding sentinels. Anything
// that isn't clearly a deadline is treated as the target being
// unreachable; both are inconclusive to the orchestrator.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", finding.ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", finding.ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", finding.ErrTargetUnreachable, err)
}
