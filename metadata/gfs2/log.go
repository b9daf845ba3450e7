package gfs2

import "github.com/sirupsen/logrus"

// log is the package default logger, handed out by DefaultLogger. Every
// orchestrator and walker takes its logger from the context it is given
// rather than reaching for this var directly, so tests can inject a
// silent logger without touching global state; a context built without
// Log does not fall back to this var and logs no diagnostics.
var log = logrus.New()

// SetLevel configures the package default logger's verbosity. cmd/savemeta
// and cmd/restoremeta call this from their -v flag.
func SetLevel(level logrus.Level) {
	log.SetLevel(level)
}

// DefaultLogger returns the package default logger as a logrus.FieldLogger,
// for callers that want SaveContext/RestoreContext to share the package's
// log configuration instead of constructing their own.
func DefaultLogger() logrus.FieldLogger {
	return log
}
