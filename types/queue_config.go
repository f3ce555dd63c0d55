package types

import (
	"fmt"
	"net/url"
	"time"

	"github.com/RezaEskandarii/pgqueue/custom_errors"
)

type EndpointMethod string

const (
	MethodGET  EndpointMethod = "GET"
	MethodPOST EndpointMethod = "POST"
)

// BearerTokenLocation says where the Dispatcher finds the token it sends.
type BearerTokenLocation string

const (
	TokenNone   BearerTokenLocation = ""
	TokenInline BearerTokenLocation = "inline"
	TokenVault  BearerTokenLocation = "vault"
)

// QueueConfig is the stored policy for one queue.
type QueueConfig struct {
	QueueName                       string        `json:"queue_name"`
	MaxConcurrency                  int           `json:"max_concurrency"`
	TimeoutMilliseconds             int64         `json:"timeout_milliseconds"`
	TimeoutWithResult               ReleaseResult `json:"timeout_with_result"`
	PauseBetweenRetriesMilliseconds int64         `json:"pause_between_retries_milliseconds"`

	EndpointActive bool `json:"endpoint_active"`
	EndpointDetails

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EndpointDetails binds a queue to an HTTP endpoint for the Dispatcher.
type EndpointDetails struct {
	Method                 EndpointMethod      `json:"endpoint_method"`
	BearerTokenLocation    BearerTokenLocation `json:"endpoint_bearer_token_location"`
	BearerTokenInlineValue string              `json:"endpoint_bearer_token_inline_value"`
	URL                    string              `json:"endpoint_url"`
	TimeoutMilliseconds    int64               `json:"endpoint_timeout_milliseconds"`
	ManualRelease          bool                `json:"endpoint_manual_release"`
}

func (d EndpointDetails) Validate() error {
	if d.URL == "" {
		return fmt.Errorf("%w: url is required", ErrInvalidEndpoint)
	}
	if _, err := url.ParseRequestURI(d.URL); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	switch d.Method {
	case MethodGET, MethodPOST:
	default:
		return fmt.Errorf("%w: method must be GET or POST, got %q", ErrInvalidEndpoint, string(d.Method))
	}
	switch d.BearerTokenLocation {
	case TokenNone, TokenInline, TokenVault:
	default:
		return fmt.Errorf("%w: unknown bearer token location %q", ErrInvalidEndpoint, string(d.BearerTokenLocation))
	}
	if d.TimeoutMilliseconds < 0 {
		return fmt.Errorf("%w: timeout must not be negative", ErrInvalidEndpoint)
	}
	return nil
}

// QueueConfigPatch is a partial update. Nil fields keep their stored value.
type QueueConfigPatch struct {
	MaxConcurrency                  *int
	TimeoutMilliseconds             *int64
	TimeoutWithResult               *ReleaseResult
	PauseBetweenRetriesMilliseconds *int64
}

// Validate reports every invalid field of the patch.
func (p QueueConfigPatch) Validate() error {
	errs := &custom_errors.ValidationError{}
	if p.TimeoutWithResult != nil {
		errs.Add(p.TimeoutWithResult.Validate())
	}
	if p.MaxConcurrency != nil && *p.MaxConcurrency < -1 {
		errs.Add(fmt.Errorf("max concurrency must be -1 (unlimited) or greater, got %d", *p.MaxConcurrency))
	}
	if p.TimeoutMilliseconds != nil && *p.TimeoutMilliseconds < 0 {
		errs.Add(fmt.Errorf("timeout must not be negative"))
	}
	if p.PauseBetweenRetriesMilliseconds != nil && *p.PauseBetweenRetriesMilliseconds < 0 {
		errs.Add(fmt.Errorf("pause between retries must not be negative"))
	}
	return errs.Err()
}
