package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMeter_PlainModePrintsOneLinePerItem(t *testing.T) {
	var buf bytes.Buffer
	m := NewMeter(&buf, "scan", 2, ProgressPlain, true)

	m.Step("mint-a", true)
	m.Step("mint-b", false)
	m.Finish()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Len(t, lines, 3)
	assert.Contains(t, lines[0], "scan [")
	assert.Contains(t, lines[0], "1/2 (50.0%)")
	assert.Contains(t, lines[0], "mint-a")
	assert.Contains(t, lines[1], "2/2 (100.0%)")
	assert.Contains(t, lines[2], "scan done: 1 ok, 1 failed")
}

func TestMeter_AutoOnTerminalRedrawsInPlace(t *testing.T) {
	var buf bytes.Buffer
	m := NewMeter(&buf, "scan", 3, ProgressAuto, true)

	m.Step("mint-a", true)

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "\r\033[K"), "live mode should clear the line first")
	assert.Contains(t, out, "1/3")
}

func TestMeter_AutoWithoutTerminalFallsBackToLines(t *testing.T) {
	var buf bytes.Buffer
	m := NewMeter(&buf, "scan", 1, ProgressAuto, false)

	m.Step("mint-a", true)

	assert.NotContains(t, buf.String(), "\r")
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))
}

func TestMeter_OffStaysSilent(t *testing.T) {
	var buf bytes.Buffer
	m := NewMeter(&buf, "scan", 5, ProgressOff, true)

	m.Step("mint-a", true)
	m.Finish()

	assert.Empty(t, buf.String())
}

func TestMeter_UnknownTotalCountsOnly(t *testing.T) {
	var buf bytes.Buffer
	m := NewMeter(&buf, "scan", 0, ProgressPlain, false)

	m.Step("", true)
	m.Step("", true)

	assert.Contains(t, buf.String(), "scan 2")
	assert.NotContains(t, buf.String(), "[")
}
