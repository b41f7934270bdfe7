// Package notify publishes application status transitions as events so
// downstream channels (mail, chat, webhooks) stay decoupled from the decision
// path that produced them.
package notify

import (
	"encoding/json"
	"fmt"
	"time"
)

// TransitionEvent records one application status change.
type TransitionEvent struct {
	EventID       string    `json:"event_id"`
	ApplicationID string    `json:"application_id"`
	JobID         string    `json:"job_id,omitempty"`
	CandidateName string    `json:"candidate_name,omitempty"`
	From          string    `json:"from"`
	To            string    `json:"to"`
	Reason        string    `json:"reason,omitempty"`
	Score         *int      `json:"score,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// ValidateBasic checks the fields every consumer depends on.
func (e TransitionEvent) ValidateBasic() error {
	if e.ApplicationID == "" {
		return fmt.Errorf("transition event: application id is required")
	}
	if e.From == "" || e.To == "" {
		return fmt.Errorf("transition event: from and to statuses are required")
	}
	return nil
}

// Marshal serializes the event for the wire.
func (e TransitionEvent) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalEvent decodes a wire payload back into an event.
func UnmarshalEvent(data []byte) (TransitionEvent, error) {
	var e TransitionEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return TransitionEvent{}, fmt.Errorf("decode transition event: %w", err)
	}
	return e, nil
}
