package opengine

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggerLevels(t *testing.T) {
	var out, errOut bytes.Buffer
	l := NewLoggerTo("gi-test-levels", false, &out, &errOut)

	l.Debugf("hidden %d", 1)
	l.Infof("frame %d", 2)
	l.Warnf("overflow at level %d", 3)
	l.Errorf("device lost")

	assert.NotContains(t, out.String(), "hidden")
	assert.Contains(t, out.String(), "[gi-test-levels] INFO: frame 2")
	assert.Contains(t, errOut.String(), "WARN: overflow at level 3")
	assert.Contains(t, errOut.String(), "ERRO: device lost")
	assert.NotContains(t, out.String(), "device lost")

	assert.False(t, l.DebugEnabled())
	l.SetDebug(true)
	assert.True(t, l.DebugEnabled())
	l.Debugf("shown %d", 4)
	assert.Contains(t, out.String(), "DEBU: shown 4")
}

func TestOrNop(t *testing.T) {
	l := OrNop(nil)
	assert.NotNil(t, l)
	l.Infof("discarded")
	assert.False(t, l.DebugEnabled())

	dl := NewLoggerTo("gi-test-ornop", false, &bytes.Buffer{}, &bytes.Buffer{})
	assert.Same(t, dl, OrNop(dl))
}
