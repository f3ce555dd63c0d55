package client

// Error types reported in ProcessJobResponse.
const (
	ErrTypeBadJobFormat   = "bad-job-format"
	ErrTypeJobNotOwned    = "job-not-owned"
	ErrTypeUnknownStep    = "unknown-step"
	ErrTypeMultiStepError = "unknown-error-handling-multistep"
	ErrTypeHandlerError   = "unknown-error-handling-job"
)

type ResponseStatus string

const (
	StatusOK    ResponseStatus = "ok"
	StatusError ResponseStatus = "error"
)

// ProcessJobError describes routing and handler failures. These are expected in
// shared-queue setups, so they travel as values instead of Go errors.
type ProcessJobError struct {
	Type    string `json:"type"`
	SubType string `json:"sub_type,omitempty"`
	Message string `json:"message,omitempty"`
}

func (e *ProcessJobError) Error() string {
	if e.Message == "" {
		return e.Type
	}
	return e.Type + ": " + e.Message
}

// IsRoutingError reports whether the job simply belongs to someone else.
func (e *ProcessJobError) IsRoutingError() bool {
	return e != nil && (e.Type == ErrTypeBadJobFormat || e.Type == ErrTypeJobNotOwned)
}

type ProcessJobResponse struct {
	Status ResponseStatus   `json:"status"`
	HadJob bool             `json:"had_job"`
	Error  *ProcessJobError `json:"error,omitempty"`
}

func okResponse() ProcessJobResponse {
	return ProcessJobResponse{Status: StatusOK, HadJob: true}
}

func emptyResponse() ProcessJobResponse {
	return ProcessJobResponse{Status: StatusOK, HadJob: false}
}

func errorResponse(errType, subType, message string) ProcessJobResponse {
	return ProcessJobResponse{
		Status: StatusError,
		HadJob: true,
		Error: &ProcessJobError{
			Type:    errType,
			SubType: subType,
			Message: message,
		},
	}
}
