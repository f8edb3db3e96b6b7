package errors

import (
	"errors"
	"strings"
	"sync"
)

// MultiError aggregates zero or more errors, it is safe for concurrent use.
type MultiError struct {
	lock sync.Mutex
	errs []error
}

func NewMultiError() *MultiError {
	return &MultiError{}
}

func (e *MultiError) Append(errs ...error) {
	e.lock.Lock()
	defer e.lock.Unlock()
	for _, err := range errs {
		if err != nil {
			e.errs = append(e.errs, err)
		}
	}
}

func (e *MultiError) AppendWithPrefixf(err error, format string, a ...any) {
	if err != nil {
		e.Append(PrefixErrorf(err, format, a...))
	}
}

func (e *MultiError) Len() int {
	e.lock.Lock()
	defer e.lock.Unlock()
	return len(e.errs)
}

// ErrorOrNil returns nil if no error was appended.
func (e *MultiError) ErrorOrNil() error {
	e.lock.Lock()
	defer e.lock.Unlock()
	switch len(e.errs) {
	case 0:
		return nil
	case 1:
		return e.errs[0]
	default:
		return errors.Join(e.errs...)
	}
}

func (e *MultiError) Error() string {
	e.lock.Lock()
	defer e.lock.Unlock()
	out := make([]string, len(e.errs))
	for i, err := range e.errs {
		out[i] = err.Error()
	}
	return strings.Join(out, "\n")
}
