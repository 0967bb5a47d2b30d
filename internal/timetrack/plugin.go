// Package timetrack records employee clock-in/clock-out pairs from login
// and logout events.
package timetrack

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/openretail-labs/magpie/internal/domain"
	"github.com/openretail-labs/magpie/internal/repository"
)

// PluginName matches the time tracker plugin's configuration row.
const PluginName = "employee_time_tracker"

// Plugin opens a time entry on login and closes the matching open entry on
// logout or session termination.
type Plugin struct {
	repo domain.Repository
}

// NewPlugin creates the time tracker plugin.
func NewPlugin(repo domain.Repository) *Plugin {
	return &Plugin{repo: repo}
}

func (p *Plugin) Name() string { return PluginName }

func (p *Plugin) Interested() []domain.Kind {
	return []domain.Kind{
		domain.KindEmployeeLogin,
		domain.KindEmployeeLogout,
		domain.KindSessionTerminated,
	}
}

func (p *Plugin) Handle(ctx context.Context, kind domain.Kind, e *domain.Event) error {
	employeeID := e.EmployeeID()
	terminalID := e.TerminalID()
	if employeeID == "" || terminalID == "" {
		slog.Warn("time tracking event missing join keys", "kind", kind)
		return nil
	}

	switch kind {
	case domain.KindEmployeeLogin:
		entry := &domain.TimeEntry{
			EntryID:    uuid.New().String(),
			EmployeeID: employeeID,
			TerminalID: terminalID,
			ClockIn:    e.EmittedAt,
		}
		if err := p.repo.CreateTimeEntry(ctx, entry); err != nil {
			return err
		}
		slog.Info("clock in", "employee_id", employeeID, "terminal_id", terminalID)

	case domain.KindEmployeeLogout, domain.KindSessionTerminated:
		entry, err := p.repo.CloseTimeEntry(ctx, employeeID, terminalID, e.EmittedAt)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				slog.Warn("logout without open time entry",
					"employee_id", employeeID,
					"terminal_id", terminalID,
				)
				return nil
			}
			return err
		}
		slog.Info("clock out",
			"employee_id", employeeID,
			"terminal_id", terminalID,
			"total_hours", entry.TotalHours,
		)
	}
	return nil
}
