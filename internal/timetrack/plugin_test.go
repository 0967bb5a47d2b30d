package timetrack

import (
	"context"
	"testing"
	"time"

	"github.com/openretail-labs/magpie/internal/domain"
	"github.com/openretail-labs/magpie/internal/repository"
)

type fakeRepo struct {
	domain.Repository
	entries []*domain.TimeEntry
}

func (f *fakeRepo) CreateTimeEntry(ctx context.Context, e *domain.TimeEntry) error {
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeRepo) CloseTimeEntry(ctx context.Context, employeeID, terminalID string, clockOut time.Time) (*domain.TimeEntry, error) {
	for i := len(f.entries) - 1; i >= 0; i-- {
		e := f.entries[i]
		if e.EmployeeID == employeeID && e.TerminalID == terminalID && e.ClockOut.IsZero() {
			e.ClockOut = clockOut
			e.TotalHours = clockOut.Sub(e.ClockIn).Hours()
			return e, nil
		}
	}
	return nil, repository.ErrNotFound
}

func event(kind domain.Kind, employeeID, terminalID string, at time.Time) *domain.Event {
	return &domain.Event{
		Kind: kind,
		Attributes: map[string]any{
			domain.AttrEmployeeID: employeeID,
			domain.AttrTerminalID: terminalID,
		},
		EmittedAt: at,
	}
}

func TestClockInAndOut(t *testing.T) {
	repo := &fakeRepo{}
	p := NewPlugin(repo)
	ctx := context.Background()

	clockIn := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	login := event(domain.KindEmployeeLogin, "E1", "T1", clockIn)
	if err := p.Handle(ctx, login.Kind, login); err != nil {
		t.Fatalf("Handle(login) failed: %v", err)
	}

	if len(repo.entries) != 1 {
		t.Fatalf("created %d entries, want 1", len(repo.entries))
	}
	entry := repo.entries[0]
	if entry.EntryID == "" {
		t.Error("entry missing generated ID")
	}
	if !entry.ClockIn.Equal(clockIn) {
		t.Errorf("ClockIn = %v, want event time %v", entry.ClockIn, clockIn)
	}

	logout := event(domain.KindEmployeeLogout, "E1", "T1", clockIn.Add(8*time.Hour))
	if err := p.Handle(ctx, logout.Kind, logout); err != nil {
		t.Fatalf("Handle(logout) failed: %v", err)
	}

	if entry.ClockOut.IsZero() {
		t.Fatal("entry not closed on logout")
	}
	if entry.TotalHours != 8.0 {
		t.Errorf("TotalHours = %v, want 8", entry.TotalHours)
	}
}

func TestSessionTerminatedClosesEntry(t *testing.T) {
	repo := &fakeRepo{}
	p := NewPlugin(repo)
	ctx := context.Background()

	clockIn := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	login := event(domain.KindEmployeeLogin, "E1", "T1", clockIn)
	p.Handle(ctx, login.Kind, login)

	terminated := event(domain.KindSessionTerminated, "E1", "T1", clockIn.Add(time.Hour))
	if err := p.Handle(ctx, terminated.Kind, terminated); err != nil {
		t.Fatalf("Handle(session.terminated) failed: %v", err)
	}

	if repo.entries[0].ClockOut.IsZero() {
		t.Error("entry not closed on session termination")
	}
}

func TestLogoutWithoutOpenEntry(t *testing.T) {
	repo := &fakeRepo{}
	p := NewPlugin(repo)

	logout := event(domain.KindEmployeeLogout, "E1", "T1", time.Now().UTC())
	if err := p.Handle(context.Background(), logout.Kind, logout); err != nil {
		t.Errorf("stray logout must not error, got: %v", err)
	}
}

func TestMissingJoinKeys(t *testing.T) {
	repo := &fakeRepo{}
	p := NewPlugin(repo)

	e := event(domain.KindEmployeeLogin, "E1", "", time.Now().UTC())
	if err := p.Handle(context.Background(), e.Kind, e); err != nil {
		t.Errorf("Handle failed: %v", err)
	}
	if len(repo.entries) != 0 {
		t.Error("entry created without terminal_id")
	}
}

func TestPerTerminalEntries(t *testing.T) {
	repo := &fakeRepo{}
	p := NewPlugin(repo)
	ctx := context.Background()

	clockIn := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	for _, terminal := range []string{"T1", "T2"} {
		login := event(domain.KindEmployeeLogin, "E1", terminal, clockIn)
		p.Handle(ctx, login.Kind, login)
	}

	// Logging out of T1 closes only the T1 entry.
	logout := event(domain.KindEmployeeLogout, "E1", "T1", clockIn.Add(4*time.Hour))
	p.Handle(ctx, logout.Kind, logout)

	if repo.entries[0].ClockOut.IsZero() {
		t.Error("T1 entry not closed")
	}
	if !repo.entries[1].ClockOut.IsZero() {
		t.Error("T2 entry closed by T1 logout")
	}
}
