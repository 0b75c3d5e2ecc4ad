package audit

import (
	"context"
	"strings"
	"time"

	"github.com/mssola/useragent"
)

// Event is emitted from handlers and tasks to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID        string
	Timestamp time.Time
	Action    Action
	// Subject is the vital records request id or the user flow name.
	Subject   string
	RequestID string // correlation id from the HTTP request context
	ClientIP  string
	UserAgent string
	Device    string // derived from UserAgent when empty
	Detail    string
}

type Action string

const (
	// Login events
	ActionLoginStarted   Action = "login_started"
	ActionLoginSucceeded Action = "login_succeeded"
	ActionLoginFailed    Action = "login_failed"
	ActionLoginCancelled Action = "login_cancelled"
	ActionLogout         Action = "logout"

	// Request lifecycle events
	ActionRequestStarted   Action = "request_started"
	ActionRequestSubmitted Action = "request_submitted"
	ActionRequestEnqueued  Action = "request_enqueued"
	ActionRequestPackaged  Action = "request_packaged"
	ActionRequestSent      Action = "request_sent"
	ActionRequestCleaned   Action = "request_cleaned"

	// Admin events
	ActionCleanupTriggered Action = "cleanup_triggered"
)

// Sink receives events. Sinks that cannot be queried (Kafka, logs) only
// implement this.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

// Store is a queryable Sink backing the admin API.
type Store interface {
	Sink
	ListBySubject(ctx context.Context, subject string) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}

// Emitter is what handlers and tasks depend on.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}

// Device summarizes a user agent string as "<browser> on <os>", "bot" for
// crawlers, or "" when nothing useful can be parsed.
func Device(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return ""
	}
	ua := useragent.New(userAgent)
	if ua.Bot() {
		return "bot"
	}
	browser, _ := ua.Browser()
	os := ua.OS()
	switch {
	case browser != "" && os != "":
		device := browser + " on " + os
		if ua.Mobile() {
			device += " (mobile)"
		}
		return device
	case browser != "":
		return browser
	default:
		return os
	}
}
