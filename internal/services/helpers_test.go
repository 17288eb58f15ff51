package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"spendwise/internal/jobs"
	"spendwise/internal/models"
	"spendwise/internal/notify"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// recordingSender captures sent messages and fails for listed recipients.
type recordingSender struct {
	mu     sync.Mutex
	sent   []notify.Message
	failTo map[string]bool
}

func (s *recordingSender) Send(_ context.Context, msg notify.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failTo[msg.To] {
		return errors.New("provider rejected message")
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

// recordingQueue captures enqueued work items.
type recordingQueue struct {
	mu    sync.Mutex
	items []jobs.WorkItem
	err   error
}

func (q *recordingQueue) Enqueue(_ context.Context, items ...jobs.WorkItem) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.items = append(q.items, items...)
	return nil
}

type stubGenerator struct {
	out []string
	err error
}

func (g stubGenerator) Generate(context.Context, *models.MonthlyStats, string) ([]string, error) {
	return g.out, g.err
}
