package note

import "time"

// Lifecycle event types published after state changes.
const (
	EventNoteCreated   = "note.created"
	EventNoteUpdated   = "note.updated"
	EventNoteDeleted   = "note.deleted"
	EventAssetOrphaned = "asset.orphaned"
)

// Event is the JSON payload published for note lifecycle changes.
type Event struct {
	Type      string    `json:"type"`
	UID       string    `json:"uid"`
	Folder    string    `json:"folder,omitempty"`
	Link      string    `json:"link,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
