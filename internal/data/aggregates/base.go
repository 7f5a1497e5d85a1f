package aggregates

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	domainagg "github.com/yungbote/bonfires-backend/internal/domain/aggregates"
	"github.com/yungbote/bonfires-backend/internal/domain/channel"
	"github.com/yungbote/bonfires-backend/internal/platform/dbctx"
	"github.com/yungbote/bonfires-backend/internal/platform/logger"
)

const (
	DefaultMaxRetries   = 3
	DefaultRetryBackoff = 10 * time.Millisecond
)

var tracer = otel.Tracer("github.com/yungbote/bonfires-backend/internal/data/aggregates")

type BaseDeps struct {
	DB        *gorm.DB
	Log       *logger.Logger
	Runner    TxRunner
	Hooks     Hooks
	CASGuard  CASGuard
	Locks     *KeyedMutex
	Publisher domainagg.Publisher
	Clock     func() time.Time

	// MaxRetries bounds re-runs of a write that failed with a retryable error.
	// Zero selects DefaultMaxRetries; a negative value disables retries.
	MaxRetries   int
	RetryBackoff time.Duration
}

func (d BaseDeps) withDefaults() BaseDeps {
	if d.Runner == nil {
		d.Runner = NewGormTxRunner(d.DB)
	}
	if d.Hooks == nil {
		d.Hooks = noopHooks{}
	}
	if d.CASGuard.db == nil {
		d.CASGuard = NewCASGuard(d.DB)
	}
	if d.Locks == nil {
		d.Locks = channelLocks
	}
	if d.Publisher == nil {
		d.Publisher = domainagg.NopPublisher{}
	}
	if d.Clock == nil {
		d.Clock = channel.Now
	}
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	switch {
	case d.MaxRetries == 0:
		d.MaxRetries = DefaultMaxRetries
	case d.MaxRetries < 0:
		d.MaxRetries = 0
	}
	if d.RetryBackoff <= 0 {
		d.RetryBackoff = DefaultRetryBackoff
	}
	return d
}

func (d BaseDeps) now() time.Time { return channel.Normalize(d.Clock()) }

// executeChannelWrite runs op under the per-channel lock. The lock is held
// across retries so a re-run never interleaves with another writer.
func executeChannelWrite(ctx context.Context, deps BaseDeps, op string, channelID uuid.UUID, fn func(dbc dbctx.Context) error) error {
	deps = deps.withDefaults()
	unlock := deps.Locks.Lock(channelID)
	defer unlock()
	return executeWrite(ctx, deps, op, fn)
}

// executeWrite runs fn in a transaction, retrying retryable failures with a
// linear backoff. fn must be safe to re-run from scratch.
func executeWrite(ctx context.Context, deps BaseDeps, op string, fn func(dbc dbctx.Context) error) error {
	start := time.Now()
	deps = deps.withDefaults()
	op = strings.TrimSpace(op)
	if op == "" {
		op = "aggregate.write"
	}
	ctx, span := tracer.Start(ctx, op)
	defer span.End()

	var mapped error
	attempt := 0
	for {
		mapped = MapError(op, deps.Runner.InTx(ctx, fn))
		if mapped == nil || !domainagg.IsCode(mapped, domainagg.CodeRetryable) || attempt >= deps.MaxRetries {
			break
		}
		if ctx.Err() != nil {
			break
		}
		attempt++
		deps.Hooks.IncRetry(op)
		deps.Log.Warn("Retrying aggregate write", "op", op, "attempt", attempt, "error", mapped)
		if !sleepCtx(ctx, time.Duration(attempt)*deps.RetryBackoff) {
			break
		}
	}
	span.SetAttributes(attribute.Int("aggregate.retries", attempt))

	status := "success"
	if mapped != nil {
		status = aggregateErrorStatus(mapped)
		if domainagg.IsCode(mapped, domainagg.CodeConflict) {
			deps.Hooks.IncConflict(op)
		}
		if domainagg.IsCode(mapped, domainagg.CodeRetryable) {
			deps.Hooks.IncRetry(op)
		}
		span.SetStatus(codes.Error, status)
		span.RecordError(mapped)
	}
	deps.Hooks.ObserveOperation(op, status, time.Since(start))
	return mapped
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func aggregateErrorStatus(err error) string {
	if err == nil {
		return "success"
	}
	code := strings.TrimSpace(string(domainagg.CodeOf(err)))
	if code == "" {
		code = strings.TrimSpace(string(domainagg.CodeOf(MapError("aggregate.status", err))))
	}
	if code == "" {
		return "failure"
	}
	return code
}
