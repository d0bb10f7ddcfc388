package conv

import "fmt"

// Failure is an error whose Reply is shown to the user when a step fails.
// The wrapped cause stays in logs only.
type Failure struct {
	Reply string
	Err   error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return f.Err.Error()
	}
	return f.Reply
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Failf builds a Failure wrapping err with a formatted user-visible reply.
func Failf(err error, format string, args ...any) *Failure {
	return &Failure{Reply: fmt.Sprintf(format, args...), Err: err}
}
