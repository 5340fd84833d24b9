package log

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatternFormatterPlaceholders(t *testing.T) {
	f := &patternFormatter{
		pattern: "%time [%level] %msg %field",
		time:    "15:04:05",
	}
	entry := &logrus.Entry{
		Time:    time.Date(2024, 3, 1, 12, 30, 45, 0, time.UTC),
		Level:   logrus.WarnLevel,
		Message: "link flapped",
		Data:    logrus.Fields{"iface": "eth0", "count": 3},
	}

	out, err := f.Format(entry)
	require.NoError(t, err)
	assert.Equal(t, "12:30:45 [warning] link flapped count=3,iface=eth0\n", string(out))
}

func TestPatternFormatterNoFields(t *testing.T) {
	f := &patternFormatter{pattern: "%level: %msg", time: time.RFC3339}
	entry := &logrus.Entry{
		Time:    time.Now(),
		Level:   logrus.InfoLevel,
		Message: "started",
	}

	out, err := f.Format(entry)
	require.NoError(t, err)
	assert.Equal(t, "info: started\n", string(out))
}
