package kerr

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewIsDeterministicForSameInputs(t *testing.T) {
	cause := errors.New("boom")
	a := New(CodePathTraversalBlocked, "escaped workspace", WithToolName("write_file"), WithCause(cause))
	b := New(CodePathTraversalBlocked, "escaped workspace", WithToolName("write_file"), WithCause(cause))

	assert.Equal(t, a.ErrorCode, b.ErrorCode)
	assert.Equal(t, a.HumanMessage, b.HumanMessage)
	assert.Equal(t, a.ToolName, b.ToolName)
	assert.Equal(t, a.Cause, b.Cause)
}

func TestEnvelopeErrorString(t *testing.T) {
	e := New(CodeKillSwitchEngaged, "writes refused")
	assert.Contains(t, e.Error(), "KILL_SWITCH_ENGAGED")
	assert.Contains(t, e.Error(), "writes refused")
}

func TestAsJSONIsStable(t *testing.T) {
	e := New(CodeInvalidPath, "bad path")
	e.Timestamp = time.Time{}
	b1, err := e.AsJSON()
	assert.NoError(t, err)
	b2, err := e.AsJSON()
	assert.NoError(t, err)
	assert.Equal(t, b1, b2)
}
