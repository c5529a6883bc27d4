package logsvc

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/uniforme/core"
)

func newTestLogger(buf *bytes.Buffer) *RollbarLogger {
	conf := &core.Config{Env: "TEST", Debug: false}
	l := NewRollbarLogger(buf, "test", conf)
	l.Enable(false)
	return l
}

func TestRollbarLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf)

	actor := core.Actor{ID: "t-1", Role: core.RoleTeacher, CenterCode: "001"}
	l.Error("saving entry", errors.New("boom"), map[string]interface{}{"student_id": "s-1"}, actor)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "saving entry", line["msg"])
	assert.Equal(t, "error", line["level"])
	assert.Equal(t, "boom", line["error"])
	assert.Equal(t, "s-1", line["student_id"])
	assert.Equal(t, "t-1", line["actor_id"])
	assert.Equal(t, "TEACHER", line["actor_role"])
	assert.Equal(t, "test", line["component"])
}

func TestRollbarLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf)

	l.Debug("hidden")
	assert.Empty(t, buf.String(), "debug is off outside debug mode")

	l.Info("shown")
	assert.Contains(t, buf.String(), "shown")
}
