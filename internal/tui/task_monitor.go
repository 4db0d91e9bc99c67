package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kelsos/genjobs/internal/async"
	"github.com/kelsos/genjobs/internal/services"
	"github.com/kelsos/genjobs/internal/sweeper"
)

// ErrQuit is returned by Run when the user closed the monitor.
var ErrQuit = errors.New("monitor closed by user")

const refreshInterval = time.Second

// TaskMonitor renders the service's tasks, worker events and sweeps.
type TaskMonitor struct {
	service *services.GenerationService
	sweeper *sweeper.Sweeper
	program *tea.Program
}

func NewTaskMonitor(service *services.GenerationService, sw *sweeper.Sweeper) *TaskMonitor {
	tm := &TaskMonitor{
		service: service,
		sweeper: sw,
		program: tea.NewProgram(NewModel(), tea.WithAltScreen()),
	}

	// Send blocks until the program reads, so workers hand off to a goroutine.
	service.Manager().OnEvent(func(ev async.Event) {
		go tm.program.Send(WorkerEventMsg{Event: ev})
	})
	if sw != nil {
		sw.OnSweep(func(r sweeper.Result) {
			go tm.program.Send(SweepMsg{Result: r})
		})
	}
	return tm
}

func (tm *TaskMonitor) AddLog(message string) {
	go tm.program.Send(LogMessage{Message: message})
}

func (tm *TaskMonitor) refresh() {
	tm.program.Send(SnapshotMsg{
		Tasks:       tm.service.Registry().Snapshot(),
		ActivePolls: tm.service.Manager().Active(),
	})
}

// Run blocks until ctx is done or the user quits, in which case ErrQuit is
// returned so the rest of the service shuts down too.
func (tm *TaskMonitor) Run(ctx context.Context) error {
	stopped := make(chan struct{})
	defer close(stopped)

	go func() {
		ticker := time.NewTicker(refreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				tm.program.Quit()
				return
			case <-stopped:
				return
			case <-ticker.C:
				tm.refresh()
			}
		}
	}()

	tm.AddLog(fmt.Sprintf("Watching %s", tm.service.Store().Root()))

	if _, err := tm.program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}

	if ctx.Err() != nil {
		return nil
	}
	return ErrQuit
}
