package storage

import (
	"testing"
	"time"

	"github.com/poiesic/cebingest/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleStats() core.RunStatistics {
	start := time.Date(2025, 3, 14, 9, 26, 53, 589000000, time.UTC)
	return core.RunStatistics{
		RunID:         "run-1",
		Stage:         core.StageEmbed,
		Category:      "family_law",
		TotalItems:    120,
		Successful:    117,
		Failed:        3,
		TotalTokens:   48210,
		EstimatedCost: 0.0009642,
		Model:         "text-embedding-3-small",
		StartTime:     start,
		EndTime:       start.Add(90 * time.Second),
	}
}

func TestRunStatisticsSerialization(t *testing.T) {
	stats := sampleStats()

	decoded, err := UnmarshalRunStatistics(MarshalRunStatistics(&stats))
	require.NoError(t, err)
	assert.Equal(t, stats, *decoded)
}

func TestRunStatisticsSerialization_ZeroTimes(t *testing.T) {
	stats := core.RunStatistics{RunID: "r", Stage: core.StageUpload, Namespace: "ceb_x"}

	decoded, err := UnmarshalRunStatistics(MarshalRunStatistics(&stats))
	require.NoError(t, err)
	assert.True(t, decoded.StartTime.IsZero())
	assert.True(t, decoded.EndTime.IsZero())
	assert.Equal(t, "ceb_x", decoded.Namespace)
}

func TestCheckpointSerialization(t *testing.T) {
	checkpoint := &core.CheckpointRecord{
		Stage:          core.StageExtract,
		Category:       "estate_planning",
		ProcessedCount: 200,
		Stats:          sampleStats(),
		Timestamp:      time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC),
	}

	decoded, err := UnmarshalCheckpoint(MarshalCheckpoint(checkpoint))
	require.NoError(t, err)
	assert.Equal(t, checkpoint, decoded)
}

func TestFailuresSerialization(t *testing.T) {
	failures := []core.Failure{
		{Item: "a.pdf", Error: "no text extracted"},
		{Item: "family_law_b_0003", Error: "rate limited"},
	}

	decoded, err := UnmarshalFailures(MarshalFailures(failures))
	require.NoError(t, err)
	assert.Equal(t, failures, decoded)

	empty, err := UnmarshalFailures(MarshalFailures(nil))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSerialization_TruncatedData(t *testing.T) {
	stats := sampleStats()
	data := MarshalRunStatistics(&stats)

	_, err := UnmarshalRunStatistics(data[:len(data)/2])
	assert.ErrorIs(t, err, ErrSerializationFailed)

	_, err = UnmarshalCheckpoint(nil)
	assert.ErrorIs(t, err, ErrSerializationFailed)

	failures := MarshalFailures([]core.Failure{{Item: "x", Error: "y"}})
	_, err = UnmarshalFailures(failures[:len(failures)-1])
	assert.ErrorIs(t, err, ErrSerializationFailed)
}
