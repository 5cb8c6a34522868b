package config

import (
	"time"

	sentry "github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"
)

// ConfigureSentry configures the sentry DSN
func ConfigureSentry(version string) {
	if Config.Logging.SentryDSN == "" {
		return
	}

	log.Debug("Using sentry logging")

	err := sentry.Init(sentry.ClientOptions{
		Dsn:     Config.Logging.SentryDSN,
		Release: version,
	})
	if err != nil {
		log.WithError(err).Warn("unable to initialize sentry client")
	}
}

// CaptureError reports err to sentry, if sentry is configured. It must not
// be called before ConfigureSentry.
func CaptureError(err error) {
	if Config.Logging.SentryDSN == "" || err == nil {
		return
	}

	sentry.CaptureException(err)
	sentry.Flush(2 * time.Second)
}
