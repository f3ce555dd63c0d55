package types

import "errors"

var (
	ErrJobNotFound             = errors.New("job not found")
	ErrInvalidReleaseResult    = errors.New("invalid release result")
	ErrEndpointDetailsRequired = errors.New("endpoint details are required when activating an endpoint")
	ErrInvalidEndpoint         = errors.New("invalid endpoint details")
	ErrAccessDenied            = errors.New("temporary access key rejected")
	ErrNoSteps                 = errors.New("multi-step queue needs at least one step")
	ErrDuplicateStep           = errors.New("duplicate step id")
	ErrUnknownStep             = errors.New("unknown step id - was it implemented?")
	ErrPayloadNotObject        = errors.New("payload must be a JSON object")
	ErrInvalidPayload          = errors.New("payload failed validation")
)
