package graduation

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperrors "proof-engine/internal/common/errors"
	"proof-engine/internal/common/logger"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultSweepInterval    = time.Hour
	DefaultSweepConcurrency = 4
)

// WidgetLister enumerates the widgets a sweep should visit.
type WidgetLister interface {
	ListWidgetIDs(ctx context.Context) ([]string, error)
}

// Graduator is satisfied by *Controller.
type Graduator interface {
	AutoGraduate(ctx context.Context, widgetID string) (*Outcome, error)
}

// SweepReport summarises one pass over all widgets.
type SweepReport struct {
	Visited   int
	Graduated []string
	Skipped   int
	Failed    map[string]error
}

// Scheduler runs AutoGraduate over every widget on a fixed interval.
// A failing widget never stops the sweep for the others.
type Scheduler struct {
	graduator   Graduator
	widgets     WidgetLister
	interval    time.Duration
	concurrency int
	logger      logger.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
}

func NewScheduler(g Graduator, widgets WidgetLister, interval time.Duration, concurrency int, log logger.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if concurrency <= 0 {
		concurrency = DefaultSweepConcurrency
	}
	return &Scheduler{
		graduator:   g,
		widgets:     widgets,
		interval:    interval,
		concurrency: concurrency,
		logger:      log,
	}
}

func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("graduation scheduler already running")
	}
	s.running = true
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.logger.Info("Starting graduation scheduler", map[string]interface{}{
		"interval":    s.interval.String(),
		"concurrency": s.concurrency,
	})

	s.wg.Add(1)
	go s.loop()
	return nil
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.logger.Info("Graduation scheduler stopped", nil)
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.RunOnce(s.ctx); err != nil {
				s.logger.Error("Graduation sweep failed", map[string]interface{}{"error": err.Error()})
			}
		}
	}
}

// RunOnce sweeps every widget once. Only a failure to list widgets is
// returned; per-widget failures are collected in the report. A cancelled
// ctx stops scheduling further widgets.
func (s *Scheduler) RunOnce(ctx context.Context) (*SweepReport, error) {
	ids, err := s.widgets.ListWidgetIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list widgets: %w", err)
	}

	report := &SweepReport{Failed: map[string]error{}}
	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)

	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		widgetID := id
		g.Go(func() error {
			out, err := s.graduator.AutoGraduate(ctx, widgetID)

			mu.Lock()
			defer mu.Unlock()
			report.Visited++
			switch {
			case apperrors.Is(err, apperrors.ErrCodeLockNotAcquired):
				report.Skipped++
			case err != nil:
				report.Failed[widgetID] = err
				s.logger.Warn("Graduation cycle failed", map[string]interface{}{
					"widgetId":  widgetID,
					"error":     err.Error(),
					"errorCode": string(apperrors.CodeOf(err)),
				})
			case out.Changed:
				report.Graduated = append(report.Graduated, widgetID)
			}
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Info("Graduation sweep finished", map[string]interface{}{
		"visited":   report.Visited,
		"graduated": len(report.Graduated),
		"skipped":   report.Skipped,
		"failed":    len(report.Failed),
	})
	return report, nil
}
