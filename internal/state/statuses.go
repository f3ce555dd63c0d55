package state

// JobStatus is the value stored in job_queue.status.
// Pending is the empty string so freshly inserted rows need no explicit status.
type JobStatus string

const (
	StatusPending    JobStatus = ""
	StatusProcessing JobStatus = "processing"
	StatusComplete   JobStatus = "complete"
	StatusFailed     JobStatus = "failed"
	StatusPaused     JobStatus = "paused"
)

func (s JobStatus) String() string {
	if s == StatusPending {
		return "pending"
	}
	return string(s)
}

var AllStatuses = []JobStatus{
	StatusPending,
	StatusProcessing,
	StatusFailed,
	StatusPaused,
}

type Transition struct {
	From JobStatus
	To   JobStatus
}

// ValidTransitions lists every status change the store performs.
// Complete rows are deleted, so StatusComplete never appears as a stored value.
var ValidTransitions = []Transition{
	{From: StatusPending, To: StatusProcessing},
	{From: StatusProcessing, To: StatusComplete},
	{From: StatusProcessing, To: StatusPending},
	{From: StatusProcessing, To: StatusFailed},
	{From: StatusProcessing, To: StatusPaused},
	{From: StatusPaused, To: StatusPending},
}

// SourcesOf returns the statuses a row may be in when it moves to "to".
func SourcesOf(to JobStatus) []JobStatus {
	var from []JobStatus
	for _, t := range ValidTransitions {
		if t.To == to {
			from = append(from, t.From)
		}
	}
	return from
}

// StatusNames returns the stored values of statuses.
func StatusNames(statuses []JobStatus) []string {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	return names
}
