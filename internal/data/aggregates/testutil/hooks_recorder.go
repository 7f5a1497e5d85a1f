package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/yungbote/bonfires-backend/internal/data/aggregates"
	domainagg "github.com/yungbote/bonfires-backend/internal/domain/aggregates"
)

// HooksRecorder captures aggregate hook signals in tests.
type HooksRecorder struct {
	mu sync.Mutex

	Operations []OperationEvent
	Conflicts  []string
	Retries    []string
}

type OperationEvent struct {
	Name     string
	Status   string
	Duration time.Duration
}

var _ aggregates.Hooks = (*HooksRecorder)(nil)

func (h *HooksRecorder) ObserveOperation(name, status string, dur time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Operations = append(h.Operations, OperationEvent{
		Name:     name,
		Status:   status,
		Duration: dur,
	})
}

func (h *HooksRecorder) IncConflict(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Conflicts = append(h.Conflicts, name)
}

func (h *HooksRecorder) IncRetry(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Retries = append(h.Retries, name)
}

func (h *HooksRecorder) RetryCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.Retries)
}

// PublisherRecorder captures channel notices published after commit.
type PublisherRecorder struct {
	mu      sync.Mutex
	notices []domainagg.ChannelNotice
}

var _ domainagg.Publisher = (*PublisherRecorder)(nil)

func (p *PublisherRecorder) PublishChannelNotice(_ context.Context, n domainagg.ChannelNotice) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notices = append(p.notices, n)
}

func (p *PublisherRecorder) Notices() []domainagg.ChannelNotice {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domainagg.ChannelNotice, len(p.notices))
	copy(out, p.notices)
	return out
}

// Kinds lists the kinds of every captured notice in publish order.
func (p *PublisherRecorder) Kinds() []domainagg.NoticeKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domainagg.NoticeKind, 0, len(p.notices))
	for _, n := range p.notices {
		out = append(out, n.Kind)
	}
	return out
}

func (p *PublisherRecorder) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notices = nil
}
