package verification

import (
	"time"

	id "montoit/pkg/domain"
)

// Job is the ephemeral, in-flight view of one KYC vendor job. It is what the
// client and poller hand back to callers; the durable state lives on the
// Record's KYC channel.
type Job struct {
	ID          id.JobID
	UserID      id.UserID
	Type        Type
	JobType     JobType
	IDType      IDType
	Country     string
	Status      ChannelStatus
	CreatedAt   time.Time
	CompletedAt *time.Time
	Result      *ProviderResult
}

// Terminal reports whether the job has reached a state from which no further
// polling is useful.
func (j *Job) Terminal() bool {
	return j != nil && j.Status.Terminal()
}
