package types

import "fmt"

// ReleaseResult is the outcome a claimer reports for a job it holds.
type ReleaseResult string

const (
	ReleaseComplete ReleaseResult = "complete"
	ReleaseFailed   ReleaseResult = "failed"
	ReleasePaused   ReleaseResult = "paused"
)

func (r ReleaseResult) String() string {
	return string(r)
}

func (r ReleaseResult) Validate() error {
	switch r {
	case ReleaseComplete, ReleaseFailed, ReleasePaused:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidReleaseResult, string(r))
}

// Ptr is a convenience for optional fields.
func (r ReleaseResult) Ptr() *ReleaseResult {
	return &r
}
