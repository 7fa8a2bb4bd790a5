package sentry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
)

// Config holds Sentry configuration. An empty DSN disables reporting.
type Config struct {
	DSN         string
	Environment string
	Release     string
	SampleRate  float64
	Debug       bool
	// Extras are attached to every event.
	Extras map[string]interface{}
}

const redacted = "[redacted]"

// secretMarkers flag extra keys whose values never leave the process.
var secretMarkers = []string{"private_key", "privatekey", "secret", "password", "token", "dsn"}

// Initialize sets up Sentry when a DSN is configured.
func Initialize(cfg Config) error {
	if cfg.DSN == "" {
		return nil
	}
	if cfg.Environment == "" {
		cfg.Environment = "production"
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		TracesSampleRate: cfg.SampleRate,
		Debug:            cfg.Debug,
		AttachStacktrace: true,
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			event.Extra = scrub(merge(cfg.Extras, event.Extra))
			return event
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize Sentry: %w", err)
	}
	return nil
}

// merge returns base overlaid with event-specific values.
func merge(base, event map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+len(event))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range event {
		out[k] = v
	}
	return out
}

// scrub replaces values whose key looks like a credential.
func scrub(extras map[string]interface{}) map[string]interface{} {
	for k := range extras {
		lower := strings.ToLower(k)
		for _, marker := range secretMarkers {
			if strings.Contains(lower, marker) {
				extras[k] = redacted
				break
			}
		}
	}
	return extras
}

// Enabled reports whether a Sentry client is configured.
func Enabled() bool {
	return sentry.CurrentHub().Client() != nil
}

// Flush waits up to timeout for queued events.
func Flush(timeout time.Duration) {
	if Enabled() {
		sentry.Flush(timeout)
	}
}

// StartSpan starts a span, or returns a nil span when Sentry is disabled.
func StartSpan(ctx context.Context, operation string, opts ...sentry.SpanOption) (*sentry.Span, context.Context) {
	if !Enabled() {
		return nil, ctx
	}
	span := sentry.StartSpan(ctx, operation, opts...)
	return span, span.Context()
}

func scoped(tags map[string]string, extras map[string]interface{}, fn func(*sentry.Scope)) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		scope.SetExtras(extras)
		fn(scope)
	})
}

// CaptureError reports err with tags and extras.
func CaptureError(err error, tags map[string]string, extras map[string]interface{}) {
	if !Enabled() || err == nil {
		return
	}
	scoped(tags, extras, func(*sentry.Scope) {
		sentry.CaptureException(err)
	})
}

// CaptureMessage reports message at level.
func CaptureMessage(message string, level sentry.Level, tags map[string]string) {
	if !Enabled() {
		return
	}
	scoped(tags, nil, func(scope *sentry.Scope) {
		scope.SetLevel(level)
		sentry.CaptureMessage(message)
	})
}

// ReportPanic reports a value obtained from recover(). The caller decides
// whether to keep running.
func ReportPanic(ctx context.Context, recovered interface{}, extras map[string]interface{}) {
	if !Enabled() || recovered == nil {
		return
	}
	scoped(nil, extras, func(*sentry.Scope) {
		sentry.CurrentHub().RecoverWithContext(ctx, recovered)
	})
}

// AddBreadcrumb records a step leading up to a later event.
func AddBreadcrumb(category, message string, data map[string]interface{}) {
	if !Enabled() {
		return
	}
	sentry.AddBreadcrumb(&sentry.Breadcrumb{
		Category:  category,
		Message:   message,
		Level:     sentry.LevelInfo,
		Data:      data,
		Timestamp: time.Now(),
	})
}
