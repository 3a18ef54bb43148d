package logger

import (
	"bytes"
	"os"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func TestDebugRespectsVerbose(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	SetVerbose(false)
	Debug("hidden %d", 1)
	assert.Empty(t, buf.String())

	SetVerbose(true)
	defer SetVerbose(false)
	Debug("shown %d", 2)
	assert.Contains(t, buf.String(), "shown 2")
	assert.True(t, IsVerbose())
}

func TestLevels(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	Info("collection %q ready", "PDFAbout")
	Warn("skipping %s", "dup")
	Error("boom")

	out := buf.String()
	assert.Contains(t, out, `collection "PDFAbout" ready`)
	assert.Contains(t, out, "skipping dup")
	assert.Contains(t, out, "boom")
}
