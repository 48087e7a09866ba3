package app

import (
	"github.com/jwulff/podium/internal/history"
	"github.com/jwulff/podium/internal/session"
)

// SnapshotMsg carries the latest session controller view.
type SnapshotMsg struct {
	Snapshot session.Snapshot
}

// UpdatesClosedMsg is sent when the controller stops publishing.
type UpdatesClosedMsg struct{}

// LevelTickMsg samples the microphone level while recording.
type LevelTickMsg struct{}

// HistoryLoadedMsg carries the saved recordings.
type HistoryLoadedMsg struct {
	Entries []history.Entry
	Err     error
}

// HistoryChangedMsg is sent after a pin or delete succeeded.
type HistoryChangedMsg struct{}

// ActionErrorMsg carries a failed user action such as start or delete.
type ActionErrorMsg struct {
	Err error
}

// ClearTransientErrorMsg clears a transient error after a timeout.
type ClearTransientErrorMsg struct{}

// ClearConfirmMsg cancels a pending delete confirmation.
type ClearConfirmMsg struct {
	ID int64
}
