package activitymap

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	signup "github.com/goliatone/go-signup"
)

// MetadataKeyUsername stores the username the event refers to.
const MetadataKeyUsername = "username"

const (
	defaultChannel    = "signup"
	defaultObjectType = "user"
	defaultActorID    = "anonymous"
)

// Normalized is a transport-agnostic activity shape for downstream systems.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization behavior.
type Option func(*normalizeOptions)

type normalizeOptions struct {
	channel       string
	objectType    string
	actorFallback string
	now           func() time.Time
}

// Normalize converts a signup.ActivityEvent into a generic normalized shape.
// Signup steps are performed by the account owner, so the user id doubles as
// the actor.
func Normalize(event signup.ActivityEvent, opts ...Option) Normalized {
	options := defaultNormalizeOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	userID := strings.TrimSpace(event.UserID)

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = options.now().UTC()
	}

	return Normalized{
		ActorID:    firstNonEmpty(userID, options.actorFallback),
		Verb:       string(event.EventType),
		ObjectType: options.objectType,
		ObjectID:   userID,
		Channel:    options.channel,
		Metadata:   normalizeMetadata(event),
		OccurredAt: occurredAt,
	}
}

// WithDefaultChannel sets the default channel for normalized records.
func WithDefaultChannel(channel string) Option {
	return func(opts *normalizeOptions) {
		opts.channel = strings.TrimSpace(channel)
	}
}

// WithDefaultObjectType sets the default object type for normalized records.
func WithDefaultObjectType(objectType string) Option {
	return func(opts *normalizeOptions) {
		opts.objectType = strings.TrimSpace(objectType)
	}
}

// WithActorFallback sets the actor id used when the event has no user id.
func WithActorFallback(actorID string) Option {
	return func(opts *normalizeOptions) {
		opts.actorFallback = strings.TrimSpace(actorID)
	}
}

// WithClock sets the time source used for events without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(opts *normalizeOptions) {
		if now != nil {
			opts.now = now
		}
	}
}

// Sink returns an ActivitySink that normalizes every event and hands it to
// emit. Errors from emit are returned to the caller, which logs them.
func Sink(emit func(context.Context, Normalized) error, opts ...Option) signup.ActivitySink {
	return signup.ActivitySinkFunc(func(ctx context.Context, event signup.ActivityEvent) error {
		if emit == nil {
			return nil
		}
		return emit(ctx, Normalize(event, opts...))
	})
}

// LogSink writes normalized events to logger at info level. Logger is
// printf style, so the fields are rendered into the message as key=value
// pairs with metadata keys sorted.
func LogSink(logger signup.Logger, opts ...Option) signup.ActivitySink {
	return Sink(func(_ context.Context, n Normalized) error {
		if logger == nil {
			return nil
		}
		logger.Info("signup activity %s", formatFields(n))
		return nil
	}, opts...)
}

func formatFields(n Normalized) string {
	var b strings.Builder
	fmt.Fprintf(&b, "verb=%s actor_id=%s object_type=%s object_id=%s channel=%s occurred_at=%s",
		n.Verb, n.ActorID, n.ObjectType, n.ObjectID, n.Channel, n.OccurredAt.Format(time.RFC3339))

	keys := make([]string, 0, len(n.Metadata))
	for key := range n.Metadata {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(&b, " %s=%v", key, n.Metadata[key])
	}
	return b.String()
}

func defaultNormalizeOptions() normalizeOptions {
	return normalizeOptions{
		channel:       defaultChannel,
		objectType:    defaultObjectType,
		actorFallback: defaultActorID,
		now:           time.Now,
	}
}

func normalizeMetadata(event signup.ActivityEvent) map[string]any {
	metadata := cloneMap(event.Metadata)

	if username := strings.TrimSpace(event.Username); username != "" {
		if metadata == nil {
			metadata = map[string]any{}
		}
		if _, exists := metadata[MetadataKeyUsername]; !exists {
			metadata[MetadataKeyUsername] = username
		}
	}

	return metadata
}

func cloneMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
