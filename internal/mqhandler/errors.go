package mqhandler

import "errors"

// outcomeError guarantees a non-nil error for a failed outcome so the
// consumer never acks it by accident.
func outcomeError(err error, msg string) error {
	if err != nil {
		return err
	}
	if msg == "" {
		msg = "processing failed"
	}
	return errors.New(msg)
}
