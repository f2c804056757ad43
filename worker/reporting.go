package worker

import (
	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
)

// reportError logs a worker failure with structured context and forwards
// it to Sentry. errorType tags the failure class so campaign, dispatch
// and gateway errors can be told apart in the dashboard.
func reportError(logger *logrus.Logger, errorType string, err error, extras map[string]interface{}) {
	entry := logger.WithFields(logrus.Fields{
		"error_type": errorType,
	})
	for k, v := range extras {
		entry = entry.WithField(k, v)
	}
	entry.WithError(err).Error("worker error")

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("error_type", errorType)
		for k, v := range extras {
			scope.SetExtra(k, v)
		}
		sentry.CaptureException(err)
	})
}
