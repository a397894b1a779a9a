package badger

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/poiesic/cebingest/core"
)

// Key prefixes for different data types
const (
	checkpointPrefix = "chkpt"
	runPrefix        = "run"
	runFailurePrefix = "runfail"
	runIDIndexPrefix = "runid"
)

// makeCheckpointKey generates a key for the checkpoint of a stage and category.
// Format: chkpt:stage:category
func makeCheckpointKey(stage core.Stage, category string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s", checkpointPrefix, stage, category))
}

// makePartialRunKey generates the prefix shared by every run of a category.
// Format: run:category:
func makePartialRunKey(category string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", runPrefix, category))
}

// makeRunKey generates a composite key ordering a category's runs by start time.
// Format: run:category:timestamp:runID
func makeRunKey(category string, started time.Time, runID string) []byte {
	prefixBytes := makePartialRunKey(category)
	buf := make([]byte, len(prefixBytes)+8+len(runID))
	offset := copy(buf, prefixBytes)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(started.UnixMicro()))
	offset += 8
	copy(buf[offset:], runID)
	return buf
}

// makeRunFailureKey generates a key for the failure listing of a run.
func makeRunFailureKey(runID string) []byte {
	return []byte(fmt.Sprintf("%s:%s", runFailurePrefix, runID))
}

// makeRunIDKey generates a key mapping a run ID to its run key.
func makeRunIDKey(runID string) []byte {
	return []byte(fmt.Sprintf("%s:%s", runIDIndexPrefix, runID))
}
