package capture

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/getsentry/sentry-go"
)

type SentryOptions struct {
	DSN         string
	Environment string
	Release     string
	ServerName  string

	// Transport replaces the HTTP transport; used in tests.
	Transport sentry.Transport
}

// Sentry captures events on a private hub, leaving the sentry globals alone.
type Sentry struct {
	hub *sentry.Hub
}

func NewSentry(opts SentryOptions) (*Sentry, error) {
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:         opts.DSN,
		Environment: opts.Environment,
		Release:     opts.Release,
		ServerName:  opts.ServerName,
		Transport:   opts.Transport,
	})
	if err != nil {
		return nil, err
	}
	return &Sentry{hub: sentry.NewHub(client, sentry.NewScope())}, nil
}

func (s *Sentry) Capture(_ context.Context, ev Event) error {
	fault := ev.Fault
	if fault == nil {
		fault = errors.New(ev.Message)
	}

	hub := s.hub.Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelError)
		scope.SetTag("error_id", ev.ErrorID)
		scope.SetTag("error_type", ev.ErrorType)
		scope.SetTag("http.status_code", strconv.Itoa(ev.StatusCode))
		if len(ev.Context) > 0 {
			scope.SetContext("error_context", sentry.Context(ev.Context))
		}
	})
	if id := hub.CaptureException(fault); id == nil {
		return errors.New("sentry dropped event " + ev.ErrorID)
	}
	return nil
}

func (s *Sentry) Flush(timeout time.Duration) bool {
	return s.hub.Flush(timeout)
}
