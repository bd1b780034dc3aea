package logger

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestNewFallsBackToInfo(t *testing.T) {
	l := NewWithOutput("nonsense", &bytes.Buffer{})
	assert.Equal(t, logrus.InfoLevel, l.GetLevel())
}

func TestForJobTagsEntries(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithOutput("debug", &buf)

	ForJob(l, "daily-scores").Info("run finished")

	assert.Contains(t, buf.String(), "job=daily-scores")
	assert.Contains(t, buf.String(), "run finished")
}
