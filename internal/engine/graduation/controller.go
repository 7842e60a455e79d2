// Package graduation decides when a widget has enough natural social proof
// to move its blend from quick-win filler toward natural events.
package graduation

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"proof-engine/internal/common/distlock"
	apperrors "proof-engine/internal/common/errors"
	"proof-engine/internal/common/logger"
	"proof-engine/internal/common/metrics"
	"proof-engine/internal/engine/blending"
	"proof-engine/internal/models"
)

const (
	DefaultThreshold = 50
	DefaultCTRFactor = 1.0
	DefaultWindow    = 7 * 24 * time.Hour
	DefaultLeaseTTL  = time.Minute
)

// Source reports per-origin analytics for one widget over [since, until).
type Source interface {
	WindowStats(ctx context.Context, widgetID string, since, until time.Time) (*models.WindowStats, error)
}

// WidgetStore is the versioned widget record. CompareAndSwapWidget writes
// next only while the stored version equals expectedVersion.
type WidgetStore interface {
	GetWidget(ctx context.Context, widgetID string) (*models.WidgetConfig, error)
	CompareAndSwapWidget(ctx context.Context, next *models.WidgetConfig, expectedVersion int64) (bool, error)
}

// Locker hands out per-key leases.
type Locker interface {
	For(key string) distlock.DistLock
}

type Notifier interface {
	NotifyGraduated(ctx context.Context, widget *models.WidgetConfig, status *models.GraduationStatus) error
}

// Invalidator drops cached copies of a widget after its record changes.
type Invalidator interface {
	Invalidate(ctx context.Context, widgetID string) error
}

type Config struct {
	DefaultThreshold int
	Thresholds       map[string]int
	CTRFactor        float64
	PreRatio         *float64 // nil means blending.DefaultPreGraduationRatio
	PostRatio        *float64
	Window           time.Duration

	pre, post float64
}

func (c Config) withDefaults() Config {
	if c.DefaultThreshold <= 0 {
		c.DefaultThreshold = DefaultThreshold
	}
	if c.CTRFactor <= 0 {
		c.CTRFactor = DefaultCTRFactor
	}
	c.pre = blending.RatioOr(c.PreRatio, blending.DefaultPreGraduationRatio)
	c.post = blending.RatioOr(c.PostRatio, blending.DefaultPostGraduationRatio)
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	return c
}

func (c Config) threshold(businessType string) int {
	if t, ok := c.Thresholds[strings.ToLower(businessType)]; ok && t > 0 {
		return t
	}
	return c.DefaultThreshold
}

// Outcome is the result of one AutoGraduate cycle.
type Outcome struct {
	WidgetID      string                   `json:"widgetId"`
	Changed       bool                     `json:"changed"`
	Graduated     bool                     `json:"graduated"`
	PreviousRatio float64                  `json:"previousRatio"`
	TargetRatio   float64                  `json:"targetRatio"`
	Status        *models.GraduationStatus `json:"status"`
}

type Controller struct {
	cfg      Config
	source   Source
	widgets  WidgetStore
	locks    Locker
	notifier Notifier
	cache    Invalidator
	logger   logger.Logger
	now      func() time.Time
}

type Option func(*Controller)

func WithNotifier(n Notifier) Option {
	return func(c *Controller) { c.notifier = n }
}

func WithInvalidator(i Invalidator) Option {
	return func(c *Controller) { c.cache = i }
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func NewController(cfg Config, source Source, widgets WidgetStore, locks Locker, log logger.Logger, opts ...Option) *Controller {
	c := &Controller{
		cfg:     cfg.withDefaults(),
		source:  source,
		widgets: widgets,
		locks:   locks,
		logger:  log,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Status computes the current graduation status. It never writes.
func (c *Controller) Status(ctx context.Context, widgetID string) (*models.GraduationStatus, error) {
	_, status, err := c.evaluate(ctx, widgetID)
	return status, err
}

func (c *Controller) evaluate(ctx context.Context, widgetID string) (*models.WidgetConfig, *models.GraduationStatus, error) {
	widget, err := c.widgets.GetWidget(ctx, widgetID)
	if err != nil {
		return nil, nil, err
	}

	now := c.now().UTC()
	stats, err := c.source.WindowStats(ctx, widgetID, now.Add(-c.cfg.Window), now)
	if err != nil {
		return nil, nil, apperrors.NewAnalyticsUnavailableError(widgetID, err)
	}

	status := Compute(widget, stats, c.cfg, now)
	metrics.GraduationProgress.Observe(status.GraduationProgress)
	return widget, status, nil
}

// AutoGraduate moves a ready widget to the post-graduation ratio. The
// transition is one way: a graduated widget is never touched again, and
// any failure leaves the stored record as it was.
func (c *Controller) AutoGraduate(ctx context.Context, widgetID string) (*Outcome, error) {
	key := "graduation:" + widgetID
	lock := c.locks.For(key)
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		metrics.GraduationCycles.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("acquire graduation lock: %w", err)
	}
	if !acquired {
		metrics.GraduationCycles.WithLabelValues("skipped").Inc()
		return nil, apperrors.NewLockNotAcquiredError(key)
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			c.logger.Warn("Failed to release graduation lock", map[string]interface{}{
				"widgetId": widgetID,
				"error":    err.Error(),
			})
		}
	}()

	widget, status, err := c.evaluate(ctx, widgetID)
	if err != nil {
		metrics.GraduationCycles.WithLabelValues("failed").Inc()
		return nil, err
	}

	out := &Outcome{
		WidgetID:      widgetID,
		Graduated:     widget.Graduated,
		PreviousRatio: status.TargetRatio,
		TargetRatio:   status.TargetRatio,
		Status:        status,
	}

	if widget.Graduated {
		metrics.GraduationCycles.WithLabelValues("already_graduated").Inc()
		return out, nil
	}
	if !status.Ready {
		metrics.GraduationCycles.WithLabelValues("not_ready").Inc()
		return out, nil
	}

	now := c.now().UTC()
	ratio := c.cfg.post
	next := *widget
	next.TargetRatio = &ratio
	next.Graduated = true
	next.GraduatedAt = &now
	next.Version = widget.Version + 1
	next.UpdatedAt = now

	swapped, err := c.widgets.CompareAndSwapWidget(ctx, &next, widget.Version)
	if err != nil {
		metrics.GraduationCycles.WithLabelValues("failed").Inc()
		return nil, apperrors.NewStorageWriteFailedError("graduate_widget", err)
	}
	if !swapped {
		metrics.GraduationCycles.WithLabelValues("failed").Inc()
		return nil, apperrors.NewVersionConflictError(widgetID, widget.Version)
	}

	metrics.GraduationCycles.WithLabelValues("graduated").Inc()
	status.Graduated = true
	status.TargetRatio = ratio
	out.Changed = true
	out.Graduated = true
	out.TargetRatio = ratio

	c.logger.Info("Widget graduated", map[string]interface{}{
		"widgetId":      widgetID,
		"previousRatio": out.PreviousRatio,
		"targetRatio":   ratio,
		"naturalCount":  status.NaturalCount,
		"version":       next.Version,
	})

	if c.cache != nil {
		if err := c.cache.Invalidate(ctx, widgetID); err != nil {
			c.logger.Warn("Failed to invalidate widget snapshot", map[string]interface{}{
				"widgetId": widgetID,
				"error":    err.Error(),
			})
		}
	}
	if c.notifier != nil {
		if err := c.notifier.NotifyGraduated(ctx, &next, status); err != nil {
			c.logger.Warn("Failed to publish graduation notice", map[string]interface{}{
				"widgetId": widgetID,
				"error":    err.Error(),
			})
		}
	}

	return out, nil
}

// EffectiveRatio is the natural ratio the blender should use for widget.
func EffectiveRatio(widget *models.WidgetConfig, pre, post float64) float64 {
	if widget.TargetRatio != nil {
		return blending.ClampRatio(*widget.TargetRatio)
	}
	if widget.Graduated {
		return blending.ClampRatio(post)
	}
	return blending.ClampRatio(pre)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
