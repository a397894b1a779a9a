// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"fmt"

	"github.com/poiesic/cebingest/core"
)

// MarshalCheckpoint serializes a CheckpointRecord to bytes.
func MarshalCheckpoint(checkpoint *core.CheckpointRecord) []byte {
	buf := make([]byte, checkpointMUS.Size(*checkpoint))
	checkpointMUS.Marshal(*checkpoint, buf)
	return buf
}

// UnmarshalCheckpoint deserializes a CheckpointRecord from bytes.
func UnmarshalCheckpoint(data []byte) (*core.CheckpointRecord, error) {
	checkpoint, _, err := checkpointMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: checkpoint: %w", ErrSerializationFailed, err)
	}
	return &checkpoint, nil
}

// MarshalRunStatistics serializes RunStatistics to bytes.
func MarshalRunStatistics(stats *core.RunStatistics) []byte {
	buf := make([]byte, statsMUS.Size(*stats))
	statsMUS.Marshal(*stats, buf)
	return buf
}

// UnmarshalRunStatistics deserializes RunStatistics from bytes.
func UnmarshalRunStatistics(data []byte) (*core.RunStatistics, error) {
	stats, _, err := statsMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: run statistics: %w", ErrSerializationFailed, err)
	}
	return &stats, nil
}

// MarshalFailures serializes a failure listing to bytes.
func MarshalFailures(failures []core.Failure) []byte {
	buf := make([]byte, failuresMUS.Size(failures))
	failuresMUS.Marshal(failures, buf)
	return buf
}

// UnmarshalFailures deserializes a failure listing from bytes.
func UnmarshalFailures(data []byte) ([]core.Failure, error) {
	failures, _, err := failuresMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: failures: %w", ErrSerializationFailed, err)
	}
	return failures, nil
}
