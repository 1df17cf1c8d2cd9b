package runstore

import (
	"strings"
	"time"

	"github.com/banshee-data/assay.report/internal/timeutil"
)

const (
	busyMaxAttempts = 5
	busyBaseDelay   = 50 * time.Millisecond
)

// retryClock is swapped for a MockClock in tests.
var retryClock timeutil.Clock = timeutil.RealClock{}

// isSQLiteBusy reports whether err looks like SQLITE_BUSY contention. The
// driver wraps the code in plain text, so this is a substring match.
func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// retryOnBusy runs fn, retrying with linear backoff while it returns a
// busy error. Any other error is returned immediately.
func retryOnBusy(fn func() error) error {
	var err error
	for attempt := 0; attempt < busyMaxAttempts; attempt++ {
		err = fn()
		if err == nil || !isSQLiteBusy(err) {
			return err
		}
		retryClock.Sleep(busyBaseDelay * time.Duration(attempt+1))
	}
	return err
}
