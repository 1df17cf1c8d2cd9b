package monitoring

import (
	"fmt"
	"testing"
)

func TestSetLogger_Redirects(t *testing.T) {
	orig := Logf
	defer func() { Logf = orig }()

	var got string
	SetLogger(func(format string, v ...interface{}) {
		got = fmt.Sprintf(format, v...)
	})
	Logf("well %s: %d spots", "A1", 34)

	if got != "well A1: 34 spots" {
		t.Errorf("captured %q", got)
	}
}

func TestSetLogger_NilMutes(t *testing.T) {
	orig := Logf
	defer func() { Logf = orig }()

	called := false
	SetLogger(func(string, ...interface{}) { called = true })
	SetLogger(nil)

	if Logf == nil {
		t.Fatal("nil SetLogger must install a no-op, not nil")
	}
	Logf("dropped")
	if called {
		t.Error("muted logger still forwarded to the previous sink")
	}
}

func TestScoped_PrefixesAndFollowsSetLogger(t *testing.T) {
	orig := Logf
	defer func() { Logf = orig }()

	var lines []string
	record := func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	}

	logf := Scoped("migrate")
	SetLogger(record)
	logf("applied version %d", 4)

	// The sink is resolved per call, so a swap after construction
	// must still take effect.
	SetLogger(nil)
	logf("dropped")
	SetLogger(record)
	logf("back")

	want := []string{"[migrate] applied version 4", "[migrate] back"}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines %q, want %d", len(lines), lines, len(want))
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}
