package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/aiodash/aiodash/pkg/client"
	"github.com/aiodash/aiodash/pkg/validate"
)

// userError is an error shown to the user as msg, keeping the cause for
// errors.Is and errors.As.
type userError struct {
	msg string
	err error
}

func (e *userError) Error() string { return e.msg }

func (e *userError) Unwrap() error { return e.err }

func userErrorf(format string, args ...any) error {
	return &userError{msg: fmt.Sprintf(format, args...)}
}

// failed turns err into the message the backend gave, or fallback when it
// gave none. Validation errors and cancellations pass through unchanged.
func failed(err error, fallback string) error {
	if err == nil {
		return nil
	}
	if _, ok := validate.AsErrors(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &userError{msg: client.Message(err, fallback), err: err}
}
