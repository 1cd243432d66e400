package domain

// Event types published after a state transition commits. The notify worker
// consumes these and runs the corresponding fan-out.
const (
	EventJobCreated   = "job.created"
	EventJobReopened  = "job.reopened"
	EventJobCanceled  = "job.canceled"
	EventSessionEnded = "session.ended"
)

// Event is the message published to the broker for each committed transition.
// ExcludeUserID keeps the actor (e.g. the withdrawing translator) out of the
// replacement fan-out. NotifyUserID carries the "other party" for
// session-ended events.
type Event struct {
	Type          string `json:"type"`
	JobID         string `json:"job_id"`
	ExcludeUserID string `json:"exclude_user_id,omitempty"`
	NotifyUserID  string `json:"notify_user_id,omitempty"`
}
