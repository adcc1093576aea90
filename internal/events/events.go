package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types emitted over a plan's generation lifecycle.
const (
	TypeGenerationQueued    = "plan.generation.queued"
	TypeGenerationSucceeded = "plan.generation.succeeded"
	TypeGenerationFailed    = "plan.generation.failed"
	TypeRegenerationQueued  = "plan.regeneration.queued"
)

// PlanEvent represents a change in a plan's generation lifecycle. It
// carries enough information for a handler to act without reaching back
// into the service layer.
type PlanEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type is one of the Type* constants
	Type string `json:"type"`

	// PlanID identifies the plan the event concerns
	PlanID uuid.UUID `json:"plan_id"`

	// UserID identifies the plan's owner
	UserID uuid.UUID `json:"user_id"`

	// Payload contains event-specific data serialized as JSON
	Payload json.RawMessage `json:"payload,omitempty"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// UnmarshalPayload decodes the event payload into the provided structure.
func (e *PlanEvent) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// NewPlanEvent creates a PlanEvent of the given type for a plan. The
// payload may be nil.
func NewPlanEvent(eventType string, planID, userID uuid.UUID, payload interface{}) (*PlanEvent, error) {
	var payloadBytes json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		payloadBytes = b
	}

	return &PlanEvent{
		ID:        uuid.New(),
		Type:      eventType,
		PlanID:    planID,
		UserID:    userID,
		Payload:   payloadBytes,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *PlanEvent) error
}

// EventEmitter defines an interface for components that can emit events.
// This allows services to publish events without direct knowledge of
// handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	// Returns an error if the event cannot be emitted.
	EmitEvent(ctx context.Context, event *PlanEvent) error
}
