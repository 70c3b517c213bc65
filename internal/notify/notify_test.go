package notify

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestTerminalSink(t *testing.T) {
	color.NoColor = true
	var out, errOut bytes.Buffer
	s := NewTerminalSink(&out, &errOut)

	s.Notify("Product added!")
	s.Error("permission denied")

	assert.Equal(t, "✔ Product added!\n", out.String())
	assert.Equal(t, "✖ permission denied\n", errOut.String())
}

func TestMultiAndRecorder(t *testing.T) {
	var a, b Recorder
	m := Multi{&a, &b, Discard{}}

	m.Notify("Cart emptied!")
	m.Error("boom")

	assert.Equal(t, []string{"Cart emptied!"}, a.Notifications())
	assert.Equal(t, []string{"boom"}, b.Errors())

	a.Reset()
	assert.Empty(t, a.Notifications())
}
