package patterns

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectBursts(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	var records []map[string]string
	for minute := 0; minute < 10; minute++ {
		n := 1
		if minute == 6 {
			n = 25
		}
		for i := 0; i < n; i++ {
			at := base.Add(time.Duration(minute)*time.Minute + time.Duration(i)*time.Second)
			records = append(records, map[string]string{"@timestamp": at.Format(time.RFC3339), "@message": fmt.Sprintf("error %d", i)})
		}
	}

	bursts := DetectBursts(records, time.Minute)
	require.Len(t, bursts, 1)
	assert.True(t, bursts[0].Start.Equal(base.Add(6*time.Minute)))
	assert.Equal(t, 25, bursts[0].Count)
	assert.GreaterOrEqual(t, bursts[0].Score, 3.0)
}

func TestDetectBurstsNeedsTimestamps(t *testing.T) {
	assert.Nil(t, DetectBursts(nil, time.Minute))
	assert.Nil(t, DetectBursts([]map[string]string{{"@message": "no time"}, {"@timestamp": "2024-03-01T10:00:00Z"}}, time.Minute))
}
