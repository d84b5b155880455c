package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/paddockhq/paddock/internal/domain"
)

type fakeArchiver struct {
	calls  int
	before time.Time
}

func (a *fakeArchiver) ArchiveTrades(ctx context.Context, before time.Time) (int64, error) {
	a.calls++
	a.before = before
	return 3, nil
}

func (a *fakeArchiver) ArchiveRiskEvents(ctx context.Context, before time.Time) (int64, error) {
	a.calls++
	return 2, nil
}

func (a *fakeArchiver) ArchiveTimerEvents(ctx context.Context, before time.Time) (int64, error) {
	a.calls++
	return 1, nil
}

type archiveLocks struct {
	err      error
	acquired int
	released int
}

func (l *archiveLocks) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	l.acquired++
	return func() { l.released++ }, nil
}

func newArchiveService(archiver *fakeArchiver, locks *archiveLocks) *ArchiveService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewArchiveService(archiver, locks, ArchiveConfig{
		Interval:  time.Hour,
		Retention: 90 * 24 * time.Hour,
	}, logger)
}

func TestSweepArchivesAgedRows(t *testing.T) {
	archiver := &fakeArchiver{}
	locks := &archiveLocks{}
	svc := newArchiveService(archiver, locks)
	at := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return at }

	svc.sweep(context.Background())

	if archiver.calls != 3 {
		t.Fatalf("archiver calls = %d, want 3", archiver.calls)
	}
	want := at.Add(-90 * 24 * time.Hour)
	if !archiver.before.Equal(want) {
		t.Errorf("cutoff = %v, want %v", archiver.before, want)
	}
	if locks.acquired != 1 || locks.released != 1 {
		t.Errorf("lock acquired/released = %d/%d, want 1/1", locks.acquired, locks.released)
	}
}

func TestSweepSkipsWhenLockHeld(t *testing.T) {
	archiver := &fakeArchiver{}
	svc := newArchiveService(archiver, &archiveLocks{err: domain.ErrLockHeld})

	svc.sweep(context.Background())

	if archiver.calls != 0 {
		t.Errorf("archiver calls = %d, want 0 while another instance holds the lock", archiver.calls)
	}
}
