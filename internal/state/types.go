package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/danielpatrickdp/affective-core/internal/cognitive"
	"github.com/danielpatrickdp/affective-core/internal/emotion"
	"github.com/danielpatrickdp/affective-core/internal/memory"
)

// ErrNotFound is returned when a session or version has no checkpoint.
var ErrNotFound = errors.New("checkpoint not found")

// #region checkpoint-record
// CheckpointRecord is one persisted version of a session's core.
type CheckpointRecord struct {
	VersionID   string
	SessionID   string
	ParentID    string
	Channels    [emotion.NumChannels]float64
	LastUpdate  time.Time
	MemoryJSON  string
	SummaryJSON string
	CreatedAt   time.Time
}

// #endregion checkpoint-record

// #region session-info
// SessionInfo describes the active checkpoint of one session.
type SessionInfo struct {
	SessionID string
	VersionID string
	UpdatedAt time.Time
	Versions  int
}

// #endregion session-info

// #region conversion
// NewRecord packs a core checkpoint and its summary into a record.
func NewRecord(versionID, sessionID, parentID string, cp cognitive.Checkpoint, summary *cognitive.Summary, now time.Time) (CheckpointRecord, error) {
	rec := CheckpointRecord{
		VersionID:  versionID,
		SessionID:  sessionID,
		ParentID:   parentID,
		LastUpdate: cp.Emotion.LastUpdate,
		CreatedAt:  now,
	}
	for _, c := range emotion.Channels() {
		if v, ok := cp.Emotion.Values[c.String()]; ok {
			rec.Channels[c] = v
		} else {
			rec.Channels[c] = c.Target()
		}
	}
	mem, err := json.Marshal(cp.Memory)
	if err != nil {
		return CheckpointRecord{}, fmt.Errorf("marshal memory: %w", err)
	}
	rec.MemoryJSON = string(mem)
	if summary != nil {
		sum, err := json.Marshal(summary)
		if err != nil {
			return CheckpointRecord{}, fmt.Errorf("marshal summary: %w", err)
		}
		rec.SummaryJSON = string(sum)
	}
	return rec, nil
}

// Core unpacks the record into a checkpoint for Core.RestoreCheckpoint.
func (r CheckpointRecord) Core() (cognitive.Checkpoint, error) {
	cp := cognitive.Checkpoint{
		Emotion: emotion.Checkpoint{
			Values:     make(map[string]float64, emotion.NumChannels),
			LastUpdate: r.LastUpdate,
		},
	}
	for _, c := range emotion.Channels() {
		cp.Emotion.Values[c.String()] = r.Channels[c]
	}
	var dump memory.Dump
	if err := json.Unmarshal([]byte(r.MemoryJSON), &dump); err != nil {
		return cognitive.Checkpoint{}, fmt.Errorf("unmarshal memory: %w", err)
	}
	cp.Memory = dump
	return cp, nil
}

// #endregion conversion
