package indexsync

import (
	"fmt"
	"time"
)

// EventKind is the kind of change a post went through
type EventKind string

const (
	EventCreate EventKind = "CREATE"
	EventUpdate EventKind = "UPDATE"
	EventDelete EventKind = "DELETE"
)

func (k EventKind) Valid() bool {
	switch k {
	case EventCreate, EventUpdate, EventDelete:
		return true
	}
	return false
}

// Event notifies the sync worker that a post changed in the post store.
// Timestamp is informational; events apply in queue order.
type Event struct {
	PostID    int64     `json:"postId"`
	Kind      EventKind `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent stamps an event with the current time
func NewEvent(postID int64, kind EventKind) Event {
	return Event{PostID: postID, Kind: kind, Timestamp: time.Now().UTC()}
}

func (e Event) String() string {
	return fmt.Sprintf("%s(%d)", e.Kind, e.PostID)
}
