package hostlog

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, Warning)

	l.Errorf("boom")
	l.Infof("ignored")

	out := buf.String()
	assert.Contains(t, out, "[error] boom")
	assert.NotContains(t, out, "ignored")
}

func TestNoneDropsEverything(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, None)
	l.Fatalf("nope")
	assert.Empty(t, buf.String())
}

func TestDebugDowngradedToInfoInRelease(t *testing.T) {
	if !releaseMode {
		t.Skip("built with the debug tag")
	}
	var buf bytes.Buffer
	l := New(&buf, Info)

	// An Info-threshold sink would drop a Debug message outright; in a
	// release build it must surface at Info instead.
	l.Debugf("still visible")
	assert.Contains(t, buf.String(), "[info] still visible")

	l.Log(Debug, "also visible")
	assert.Contains(t, buf.String(), "[info] also visible")
}
