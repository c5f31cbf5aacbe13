package queue

import "errors"

var (
	ErrUnknownQueue   = errors.New("unknown queue")
	ErrUnknownJobType = errors.New("unknown job type")
	ErrNoHandler      = errors.New("no handler registered")

	// ErrRateLimited marks a send rejected by the tenant rate limiter. The job is
	// postponed without using up an attempt.
	ErrRateLimited = errors.New("rate limited")
)

// PermanentError wraps failures that retrying cannot fix, such as a missing campaign.
// The worker fails the job immediately instead of scheduling another attempt.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return "permanent failure: " + e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

func Permanent(err error) error {
	if err == nil {
		return nil
	}
	if IsPermanent(err) {
		return err
	}
	return &PermanentError{Err: err}
}

func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}
