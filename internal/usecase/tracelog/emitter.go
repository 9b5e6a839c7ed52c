// Package tracelog appends derived trace events after the domain write they
// describe has committed. Emission is best effort: failures are retried with
// exponential backoff and then logged, never returned to the caller.
package tracelog

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"pharmatrace/internal/bootstrap/logging"
	"pharmatrace/internal/domain/trace"
	"pharmatrace/internal/errs"
	"pharmatrace/internal/ports"
)

const (
	DefaultMaxTries        = 5
	DefaultInitialInterval = 200 * time.Millisecond
	DefaultMaxInterval     = 5 * time.Second
)

type RetryPolicy struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxTries == 0 {
		p.MaxTries = DefaultMaxTries
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = DefaultInitialInterval
	}
	if p.MaxInterval <= 0 {
		p.MaxInterval = DefaultMaxInterval
	}
	return p
}

// Emission is one event plus the container whose event id back-reference is
// set once the append succeeds. ContainerID zero skips the back-reference.
type Emission struct {
	Event       trace.Event
	Container   ports.ContainerKind
	ContainerID uint64
}

type Emitter struct {
	events     ports.TraceEventRepository
	containers ports.ContainerWriter
	policy     RetryPolicy
	logger     *slog.Logger
}

func NewEmitter(events ports.TraceEventRepository, containers ports.ContainerWriter, policy RetryPolicy, logger *slog.Logger) *Emitter {
	return &Emitter{
		events:     events,
		containers: containers,
		policy:     policy.withDefaults(),
		logger:     logger,
	}
}

// Emit appends each emission in order and returns how many were recorded.
// A reused event id is not retried.
func (e *Emitter) Emit(ctx context.Context, emissions ...Emission) int {
	if e == nil || e.events == nil || len(emissions) == 0 {
		return 0
	}
	if ctx == nil {
		ctx = context.Background()
	}
	// Emission runs after commit; it must not join the caller's transaction.
	ctx = ports.Detach(ctx)
	ctx = logging.WithLogger(ctx, e.logger)
	ctx = logging.WithAttrs(ctx, slog.String("component", "tracelog.emitter"))

	emitted := 0
	for _, em := range emissions {
		logCtx := logging.WithAttrs(ctx,
			slog.String("event_id", em.Event.EventID),
			slog.String("event_type", string(em.Event.Kind)),
			slog.String("parent_id", em.Event.ParentID),
		)
		if err := e.append(ctx, em.Event); err != nil {
			logging.Error(logCtx, "trace event emission failed", slog.Any("err", errs.Loggable(err)))
			continue
		}
		emitted++

		if em.ContainerID == 0 || e.containers == nil {
			continue
		}
		if err := e.containers.SetEventID(ctx, em.Container, em.ContainerID, em.Event.EventID); err != nil {
			logging.Warn(logCtx, "attach event id to container failed",
				slog.String("container", string(em.Container)),
				slog.Uint64("container_id", em.ContainerID),
				slog.Any("err", errs.Loggable(err)),
			)
		}
	}
	return emitted
}

func (e *Emitter) append(ctx context.Context, event trace.Event) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.policy.InitialInterval
	b.MaxInterval = e.policy.MaxInterval

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := e.events.AppendEvent(ctx, event)
		if err == nil {
			return struct{}{}, nil
		}
		if errors.Is(err, trace.ErrDuplicateEvent) || errors.Is(err, errs.ErrValidation) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(e.policy.MaxTries))
	return err
}
