package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigure_JSONOutsideDebug(t *testing.T) {
	var buf bytes.Buffer
	l := Configure(logrus.New(), &buf, "warn", false)

	l.Info("dropped")
	l.WithField("path", "user_1/a.jpg").Warn("kept")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "user_1/a.jpg", entry["path"])
}

func TestConfigure_BadLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := Configure(logrus.New(), &buf, "loud", true)

	assert.Equal(t, logrus.InfoLevel, l.GetLevel())
	_, ok := l.Formatter.(*logrus.TextFormatter)
	assert.True(t, ok)
}
