package chat

import "strings"

// DeliveryMode is how an assistant reply reaches the turn text.
type DeliveryMode string

const (
	// ModeStream appends backend fragments as they arrive.
	ModeStream DeliveryMode = "stream"
	// ModeOneShot fetches the full reply, then replays it through the
	// reveal scheduler for visual parity with streaming.
	ModeOneShot DeliveryMode = "one-shot"
)

// LocalModelID is the designated identifier for the locally hosted model.
const LocalModelID = "local-model"

// SelectDeliveryMode picks the delivery mode for a model identifier.
// The local model streams; recognized hosted models ("gpt*") answer in one
// shot. Unrecognized identifiers fall back to streaming, matching how the
// backend routes them to the local endpoint. Pure and stateless: no
// network probing.
func SelectDeliveryMode(modelID string) DeliveryMode {
	if modelID == LocalModelID {
		return ModeStream
	}
	if strings.HasPrefix(modelID, "gpt") {
		return ModeOneShot
	}
	return ModeStream
}
