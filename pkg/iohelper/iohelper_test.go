package iohelper

import (
	"io"
	"strings"
	"testing"
)

func TestReadBody(t *testing.T) {
	t.Run("caps the read", func(t *testing.T) {
		data, err := ReadBody(strings.NewReader(strings.Repeat("x", 100)), 10)
		if err != nil {
			t.Fatalf("ReadBody error: %v", err)
		}
		if len(data) != 10 {
			t.Errorf("read %d bytes, want 10", len(data))
		}
	})

	t.Run("nil reader yields empty", func(t *testing.T) {
		data, err := ReadBody(nil, 10)
		if err != nil || len(data) != 0 {
			t.Errorf("ReadBody(nil) = %v, %v", data, err)
		}
	})
}

type closeTracker struct {
	io.Reader
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}

func TestDrainAndClose(t *testing.T) {
	rc := &closeTracker{Reader: strings.NewReader("leftover")}
	if err := DrainAndClose(rc); err != nil {
		t.Fatalf("DrainAndClose error: %v", err)
	}
	if !rc.closed {
		t.Error("reader not closed")
	}
	if n, _ := rc.Read(make([]byte, 1)); n != 0 {
		t.Error("reader not drained")
	}

	if err := DrainAndClose(nil); err != nil {
		t.Error("nil reader must be a no-op")
	}
}
