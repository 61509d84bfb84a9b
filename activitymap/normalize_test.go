package activitymap_test

import (
	"context"
	"testing"
	"time"

	auth "github.com/goliatone/go-shop-auth"
	"github.com/goliatone/go-shop-auth/activitymap"
)

func TestNormalizeDefaults(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)
	event := auth.ActivityEvent{
		EventType: auth.ActivityEventActivated,
		Actor:     auth.ActorRef{ID: "user-100", Type: "principal"},
		UserID:    "user-100",
		Metadata: map[string]any{
			"email": "ana@example.com",
		},
		OccurredAt: ts,
	}

	out := activitymap.Normalize(event)

	if out.ActorID != "user-100" {
		t.Fatalf("expected actor_id user-100, got %q", out.ActorID)
	}
	if out.Verb != string(auth.ActivityEventActivated) {
		t.Fatalf("expected verb %q, got %q", auth.ActivityEventActivated, out.Verb)
	}
	if out.ObjectType != "principal" {
		t.Fatalf("expected object_type principal, got %q", out.ObjectType)
	}
	if out.ObjectID != "user-100" {
		t.Fatalf("expected object_id user-100, got %q", out.ObjectID)
	}
	if out.Channel != "auth" {
		t.Fatalf("expected channel auth, got %q", out.Channel)
	}
	if !out.OccurredAt.Equal(ts) {
		t.Fatalf("expected occurred_at %v, got %v", ts, out.OccurredAt)
	}
	if out.Metadata["email"] != "ana@example.com" {
		t.Fatalf("expected metadata email, got %#v", out.Metadata["email"])
	}
	if out.Metadata[activitymap.MetadataKeyActorType] != "principal" {
		t.Fatalf("expected metadata actor_type principal, got %#v", out.Metadata[activitymap.MetadataKeyActorType])
	}
	if _, ok := out.Metadata[activitymap.MetadataKeyOutcome]; ok {
		t.Fatalf("expected no outcome for activation, got %#v", out.Metadata[activitymap.MetadataKeyOutcome])
	}

	if len(event.Metadata) != 1 {
		t.Fatalf("expected source metadata to remain unchanged, got %+v", event.Metadata)
	}
}

func TestNormalizeChannelAndOutcome(t *testing.T) {
	t.Parallel()

	tests := []struct {
		event   auth.ActivityEventType
		channel string
		outcome any
	}{
		{auth.ActivityEventProfileUpdated, "user", nil},
		{auth.ActivityEventAccessDenied, "auth", "denied"},
		{auth.ActivityEventLoginFailure, "auth", "failure"},
		{auth.ActivityEventSocialLoginFailure, "auth", "failure"},
		{auth.ActivityEventType(""), "auth", nil},
	}

	for _, tc := range tests {
		out := activitymap.Normalize(auth.ActivityEvent{EventType: tc.event})
		if out.Channel != tc.channel {
			t.Fatalf("%s: expected channel %q, got %q", tc.event, tc.channel, out.Channel)
		}
		if out.Metadata[activitymap.MetadataKeyOutcome] != tc.outcome {
			t.Fatalf("%s: expected outcome %v, got %#v", tc.event, tc.outcome, out.Metadata[activitymap.MetadataKeyOutcome])
		}
	}
}

func TestNormalizeOptionOverrides(t *testing.T) {
	t.Parallel()

	event := auth.ActivityEvent{
		EventType: auth.ActivityEventPasswordResetSuccess,
		Actor:     auth.ActorRef{Type: "principal"},
		UserID:    "user-200",
		Metadata: map[string]any{
			"email":                          "ana@example.com",
			"reset_code":                     "reset-1",
			activitymap.MetadataKeyActorType: "existing",
		},
	}

	out := activitymap.Normalize(
		event,
		activitymap.WithDefaultChannel("security"),
		activitymap.WithDefaultObjectType("account"),
		activitymap.WithRedactedKeys("email", "missing"),
		activitymap.WithObjectIDResolver(func(e auth.ActivityEvent) string {
			if v, ok := e.Metadata["reset_code"].(string); ok {
				return v
			}
			return ""
		}),
	)

	if out.Channel != "security" {
		t.Fatalf("expected channel security, got %q", out.Channel)
	}
	if out.ObjectType != "account" {
		t.Fatalf("expected object_type account, got %q", out.ObjectType)
	}
	if out.ObjectID != "reset-1" {
		t.Fatalf("expected object_id reset-1, got %q", out.ObjectID)
	}
	if out.Metadata[activitymap.MetadataKeyActorType] != "existing" {
		t.Fatalf("expected existing actor_type preserved, got %#v", out.Metadata[activitymap.MetadataKeyActorType])
	}
	if out.Metadata["email"] != "[redacted]" {
		t.Fatalf("expected email redacted, got %#v", out.Metadata["email"])
	}
	if _, ok := out.Metadata["missing"]; ok {
		t.Fatalf("redaction must not add keys")
	}
	if event.Metadata["email"] != "ana@example.com" {
		t.Fatalf("expected source metadata untouched")
	}
	if out.OccurredAt.IsZero() {
		t.Fatalf("expected occurred_at to be set when input is zero")
	}
}

func TestNormalizeActorFallbackChain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		event  auth.ActivityEvent
		opts   []activitymap.Option
		expect string
	}{
		{
			name:   "uses actor id when present",
			event:  auth.ActivityEvent{Actor: auth.ActorRef{ID: "actor-1"}, UserID: "user-1"},
			expect: "actor-1",
		},
		{
			name:   "uses user id when actor id missing",
			event:  auth.ActivityEvent{UserID: "user-2"},
			expect: "user-2",
		},
		{
			name:   "anonymous when actor and user missing",
			event:  auth.ActivityEvent{},
			expect: "anonymous",
		},
		{
			name:   "uses configured fallback",
			event:  auth.ActivityEvent{},
			opts:   []activitymap.Option{activitymap.WithActorFallback("job")},
			expect: "job",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			out := activitymap.Normalize(tc.event, tc.opts...)
			if out.ActorID != tc.expect {
				t.Fatalf("expected actor_id %q, got %q", tc.expect, out.ActorID)
			}
		})
	}
}

type line struct {
	level string
	msg   string
	args  []any
}

type captureLogger struct{ lines []line }

func (c *captureLogger) Debug(msg string, args ...any) { c.lines = append(c.lines, line{"debug", msg, args}) }
func (c *captureLogger) Info(msg string, args ...any)  { c.lines = append(c.lines, line{"info", msg, args}) }
func (c *captureLogger) Warn(msg string, args ...any)  { c.lines = append(c.lines, line{"warn", msg, args}) }
func (c *captureLogger) Error(msg string, args ...any) { c.lines = append(c.lines, line{"error", msg, args}) }

func TestLogSink(t *testing.T) {
	logger := &captureLogger{}
	sink := activitymap.LogSink(logger, activitymap.WithRedactedKeys("email"))
	ctx := context.Background()

	if err := sink.Record(ctx, auth.ActivityEvent{EventType: auth.ActivityEventLoginSuccess, UserID: "u1"}); err != nil {
		t.Fatal(err)
	}
	if err := sink.Record(ctx, auth.ActivityEvent{
		EventType: auth.ActivityEventLoginFailure,
		Metadata:  map[string]any{"email": "ana@example.com"},
	}); err != nil {
		t.Fatal(err)
	}

	if len(logger.lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(logger.lines))
	}
	if logger.lines[0].level != "info" || logger.lines[1].level != "warn" {
		t.Fatalf("unexpected levels %q %q", logger.lines[0].level, logger.lines[1].level)
	}
	if logger.lines[0].args[1] != string(auth.ActivityEventLoginSuccess) {
		t.Fatalf("expected verb first, got %#v", logger.lines[0].args)
	}

	args := logger.lines[1].args
	metadata, ok := args[len(args)-1].(map[string]any)
	if !ok || metadata["email"] != "[redacted]" {
		t.Fatalf("expected redacted email in metadata, got %#v", args)
	}
}
