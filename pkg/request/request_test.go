package request

import (
	"errors"
	"strings"
	"testing"
)

func TestBuilder(t *testing.T) {
	t.Run("assembles a full template", func(t *testing.T) {
		tmpl, err := New("get", "https://example.com/").
			Routes("api", "items").
			Param("q", "baseline").
			Header("X-Api-Key", "k").
			Body(`{"user":{"name":"alice"}}`).
			Build()
		if err != nil {
			t.Fatalf("Build error: %v", err)
		}
		if tmpl.Method() != "GET" {
			t.Errorf("Method() = %q, want GET", tmpl.Method())
		}
		if got := tmpl.URL(); got != "https://example.com/api/items?q=baseline" {
			t.Errorf("URL() = %q", got)
		}
	})

	t.Run("configuration errors surface at Build", func(t *testing.T) {
		tests := []struct {
			name string
			b    *Builder
		}{
			{"empty method", New("", "https://example.com")},
			{"bad base URL", New("GET", "://nope")},
			{"empty param name", New("GET", "https://example.com").Param("", "v")},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if _, err := tt.b.Build(); !errors.Is(err, ErrConfiguration) {
					t.Errorf("Build error = %v, want ErrConfiguration", err)
				}
			})
		}
	})
}

func TestURLEscapesInjectedValues(t *testing.T) {
	tmpl, err := New("GET", "https://example.com").
		Routes("files").
		Param("path", "x").
		Build()
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	v, err := tmpl.WithParamValue("path", "../../etc/passwd&x=1")
	if err != nil {
		t.Fatalf("WithParamValue error: %v", err)
	}
	u := v.URL()
	if strings.Contains(u, "&x=1") {
		t.Errorf("URL %q leaks unescaped query metacharacters", u)
	}
	if !strings.Contains(u, "path=") {
		t.Errorf("URL %q lost the parameter", u)
	}
}

func TestWithMethodsCopyOnWrite(t *testing.T) {
	tmpl, err := New("POST", "https://example.com").
		Routes("v1", "login").
		Param("q", "orig").
		Header("X-Trace", "t0").
		Body(`{"a":"b"}`).
		Build()
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}

	t.Run("param rewrite leaves the original untouched", func(t *testing.T) {
		v, err := tmpl.WithParamValue("q", "injected")
		if err != nil {
			t.Fatalf("WithParamValue error: %v", err)
		}
		if tmpl.Params()[0].Value != "orig" {
			t.Error("original template mutated")
		}
		if v.Params()[0].Value != "injected" {
			t.Error("copy missing the injected value")
		}
	})

	t.Run("unknown param is a configuration error", func(t *testing.T) {
		if _, err := tmpl.WithParamValue("nope", "x"); !errors.Is(err, ErrConfiguration) {
			t.Errorf("error = %v, want ErrConfiguration", err)
		}
	})

	t.Run("segment rewrite", func(t *testing.T) {
		v, err := tmpl.WithSegment(1, "admin")
		if err != nil {
			t.Fatalf("WithSegment error: %v", err)
		}
		if v.Segments()[1] != "admin" || tmpl.Segments()[1] != "login" {
			t.Error("segment copy-on-write broken")
		}
		if _, err := tmpl.WithSegment(5, "x"); !errors.Is(err, ErrConfiguration) {
			t.Errorf("out-of-range error = %v, want ErrConfiguration", err)
		}
	})

	t.Run("header rewrite is case-insensitive and appends new names", func(t *testing.T) {
		v, _ := tmpl.WithHeader("x-trace", "t1")
		if v.Headers()[0].Value != "t1" {
			t.Error("existing header not rewritten")
		}
		v2, _ := tmpl.WithHeader("X-New", "n")
		if len(v2.Headers()) != len(tmpl.Headers())+1 {
			t.Error("new header not appended")
		}
	})

	t.Run("body rewrite", func(t *testing.T) {
		v, _ := tmpl.WithBody(`{"a":"payload"}`)
		if tmpl.Body() != `{"a":"b"}` || v.Body() != `{"a":"payload"}` {
			t.Error("body copy-on-write broken")
		}
	})
}

func TestAccessorsReturnCopies(t *testing.T) {
	tmpl, _ := New("GET", "https://example.com").Routes("a").Param("p", "v").Build()
	segs := tmpl.Segments()
	segs[0] = "mutated"
	if tmpl.Segments()[0] != "a" {
		t.Error("Segments() exposes internal slice")
	}
	params := tmpl.Params()
	params[0].Value = "mutated"
	if tmpl.Params()[0].Value != "v" {
		t.Error("Params() exposes internal slice")
	}
}

func TestSnapshot(t *testing.T) {
	tmpl, _ := New("GET", "https://example.com").
		Routes("api").
		Param("q", "x").
		Header("X-K", "v").
		Build()
	snap := tmpl.Snapshot()
	for _, want := range []string{"GET", "https://example.com/api?q=x", `X-K="v"`} {
		if !strings.Contains(snap, want) {
			t.Errorf("Snapshot %q missing %q", snap, want)
		}
	}
	if strings.Contains(snap, "\n") {
		t.Error("Snapshot is not a single line")
	}
}
