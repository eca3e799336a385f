package common

import (
	"errors"
	"fmt"
	"net"

	"github.com/medreport/medreport/logger"
)

func NewErrorf(format string, a ...any) error {
	msg := fmt.Sprintf(format, a...)
	return errors.New(msg)
}

// Combine joins the non-nil errors, returning nil when there are none.
func Combine(errs ...error) error {
	return errors.Join(errs...)
}

// IsClosedConnError reports whether err comes from using a closed
// connection or listener.
func IsClosedConnError(err error) bool {
	return errors.Is(err, net.ErrClosed)
}

func Recover(msg string) any {
	panicErr := recover()
	if panicErr != nil {
		if msg != "" {
			logger.Error(msg, "panic:", panicErr)
		}
	}
	return panicErr
}
