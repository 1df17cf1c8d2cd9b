// Package monitoring carries the process-wide diagnostic log hook shared by
// the library packages. Binaries and tests redirect or mute it through
// SetLogger instead of threading a logger through every constructor.
package monitoring

import "log"

// Logf is the diagnostic logger used by library packages. It defaults to
// log.Printf and is never nil.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. A nil f mutes diagnostics.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Scoped returns a log function that prefixes each message with "[name] "
// and forwards to the current Logf. The sink is looked up per call, so a
// later SetLogger also redirects already-constructed scoped loggers.
func Scoped(name string) func(format string, v ...interface{}) {
	prefix := "[" + name + "] "
	return func(format string, v ...interface{}) {
		Logf(prefix+format, v...)
	}
}
