package custom_errors

import (
	"errors"
)

// ValidationError collects every problem found while validating a value so the
// caller sees them all at once. errors.Is and errors.As look through it.
type ValidationError struct {
	Errors []error `json:"errors"`
}

// Add records err. Nil errors are ignored so checks can be added unconditionally.
func (c *ValidationError) Add(err error) {
	if err == nil {
		return
	}
	c.Errors = append(c.Errors, err)
}

func (c *ValidationError) HasError() bool {
	return len(c.Errors) > 0
}

// Err returns c when it holds at least one error and nil otherwise.
func (c *ValidationError) Err() error {
	if !c.HasError() {
		return nil
	}
	return c
}

func (c *ValidationError) Error() string {
	if len(c.Errors) == 0 {
		return ""
	}
	return errors.Join(c.Errors...).Error()
}

func (c *ValidationError) Unwrap() []error {
	return c.Errors
}
