package chat

// Author identifies who produced a turn.
type Author string

const (
	AuthorUser      Author = "user"
	AuthorAssistant Author = "assistant"
)

// DeliveryState tracks how far an assistant reply has progressed.
// User turns are created complete and never move.
type DeliveryState string

const (
	// DeliveryPending means the assistant turn exists but no reply bytes
	// have been chosen for it yet.
	DeliveryPending DeliveryState = "pending"
	// DeliveryStreaming means reply fragments are being appended as they
	// arrive from the backend.
	DeliveryStreaming DeliveryState = "streaming"
	// DeliveryRevealing means the full reply is known and is being played
	// back incrementally by the reveal scheduler.
	DeliveryRevealing DeliveryState = "revealing"
	DeliveryComplete  DeliveryState = "complete"
	DeliveryFailed    DeliveryState = "failed"
)

// Terminal reports whether the state allows no further text mutation.
func (s DeliveryState) Terminal() bool {
	return s == DeliveryComplete || s == DeliveryFailed
}

// Turn is one exchange unit in a conversation thread.
//
// IDs are assigned by the controller, strictly increasing in creation
// order, and unique within a thread. Once State is terminal the Text is
// immutable.
type Turn struct {
	ID        int64
	Author    Author
	Text      string
	State     DeliveryState
	Reason    string // failure reason, set only when State is DeliveryFailed
	CreatedTs int64
}
