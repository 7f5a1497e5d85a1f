package testutil

import (
	"context"
	"sync"

	"github.com/yungbote/bonfires-backend/internal/data/aggregates"
	"github.com/yungbote/bonfires-backend/internal/platform/dbctx"
)

// InjectedTxRunner wraps an optional real runner and injects failures.
//
// With Inner set, the body runs inside a real transaction and an injected
// commit failure is returned from inside it, so the database rolls back.
// Without Inner the body sees a Context with no Tx.
type InjectedTxRunner struct {
	mu sync.Mutex

	Inner TxRunner

	FailBegin  error
	FailCommit error
	// FailTimes limits FailCommit to the first N attempts. Zero fails every attempt.
	FailTimes int

	BeginCalls    int
	CommitCalls   int
	RollbackCalls int
}

type TxRunner = aggregates.TxRunner

var _ aggregates.TxRunner = (*InjectedTxRunner)(nil)

func (r *InjectedTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	r.mu.Lock()
	r.BeginCalls++
	attempt := r.BeginCalls
	failBegin := r.FailBegin
	failCommit := r.FailCommit
	if r.FailTimes > 0 && attempt > r.FailTimes {
		failCommit = nil
	}
	inner := r.Inner
	r.mu.Unlock()

	if failBegin != nil {
		return failBegin
	}

	body := func(dbc dbctx.Context) error {
		if fn != nil {
			if err := fn(dbc); err != nil {
				return err
			}
		}
		return failCommit
	}

	var err error
	if inner != nil {
		err = inner.InTx(ctx, body)
	} else {
		err = body(dbctx.New(ctx))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.RollbackCalls++
		return err
	}
	r.CommitCalls++
	return nil
}

func (r *InjectedTxRunner) Counts() (begin, commit, rollback int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.BeginCalls, r.CommitCalls, r.RollbackCalls
}
