package services

import (
	"context"
	"time"

	"github.com/fenilmodi00/nuri-bid-crawler/browser"
	"github.com/fenilmodi00/nuri-bid-crawler/config"
	"github.com/fenilmodi00/nuri-bid-crawler/shared"
	"github.com/sirupsen/logrus"
)

// Action describes one logical click
type Action struct {
	Selector string
	Label    string
	Timeout  time.Duration
	Retries  int
	// RevealHint is a menu trigger whose hover makes Selector visible
	RevealHint string
}

// clickStrategy is one way of getting a click onto the target. ok=false moves on to the next strategy.
type clickStrategy struct {
	name string
	run  func(ctx context.Context, a *Actuator, action Action) (ok bool, err error)
}

// Strategies run in this order on every attempt, after overlays are cleared and the target is attached
var clickStrategies = []clickStrategy{
	{name: "visible_click", run: visibleClick},
	{name: "hover_reveal", run: hoverReveal},
	{name: "script_click", run: scriptClick},
}

// Actuator clicks through overlays, collapsed menus and late rendering with bounded retries
type Actuator struct {
	page       browser.Page
	clearer    *ObstructionClearer
	timing     config.Timing
	strategies []clickStrategy
	metrics    *shared.ServiceMetrics
	logger     *logrus.Entry
}

// NewActuator creates an actuator that clears overlays with clearer before each attempt
func NewActuator(page browser.Page, clearer *ObstructionClearer, timing config.Timing, logger *logrus.Entry) *Actuator {
	return &Actuator{
		page:       page,
		clearer:    clearer,
		timing:     timing,
		strategies: clickStrategies,
		metrics:    shared.NewServiceMetrics("Actuator"),
		logger:     logger.WithField("component", "Actuator"),
	}
}

// Metrics exposes per-strategy counters and click timings
func (a *Actuator) Metrics() *shared.ServiceMetrics {
	return a.metrics
}

// Act tries to click action.Selector up to action.Retries times. A false result means
// every attempt failed and the caller must treat the step as failed.
func (a *Actuator) Act(ctx context.Context, action Action) bool {
	retries := action.Retries
	if retries <= 0 {
		retries = 1
	}
	logger := a.logger.WithFields(logrus.Fields{
		"method": "Act",
		"target": action.Label,
	})
	start := time.Now()

	for attempt := 1; attempt <= retries; attempt++ {
		if ctx.Err() != nil {
			break
		}
		a.metrics.IncrementCounter("attempts")

		a.clearer.Clear(ctx)

		if err := a.page.WaitFor(ctx, action.Selector, browser.StateAttached, action.Timeout); err != nil {
			logger.WithFields(logrus.Fields{
				"attempt": attempt,
				"error":   err.Error(),
			}).Debug("Target not attached")
			_ = sleepContext(ctx, a.timing.AttemptPause)
			continue
		}

		if err := a.page.ScrollIntoView(ctx, action.Selector); err != nil {
			logger.WithError(err).Debug("Scroll into view failed")
		}

		for _, strategy := range a.strategies {
			ok, err := strategy.run(ctx, a, action)
			if err != nil {
				logger.WithFields(logrus.Fields{
					"attempt":  attempt,
					"strategy": strategy.name,
					"error":    err.Error(),
				}).Debug("Click strategy failed")
			}
			if ok {
				a.metrics.IncrementCounter("strategy:" + strategy.name)
				a.metrics.RecordRequest(true, time.Since(start))
				logger.WithFields(logrus.Fields{
					"attempt":  attempt,
					"strategy": strategy.name,
				}).Debug("Clicked")
				return true
			}
		}

		_ = sleepContext(ctx, a.timing.AttemptPause)
	}

	a.metrics.RecordRequest(false, time.Since(start))
	a.metrics.IncrementCounter("exhausted")
	logger.WithFields(logrus.Fields{
		"retries":  retries,
		"selector": action.Selector,
	}).Error("Click failed after all attempts")
	return false
}

func visibleClick(ctx context.Context, a *Actuator, action Action) (bool, error) {
	visible, err := a.page.IsVisible(ctx, action.Selector)
	if err != nil || !visible {
		return false, err
	}
	if err := a.page.Click(ctx, action.Selector); err != nil {
		return false, err
	}
	return true, nil
}

func hoverReveal(ctx context.Context, a *Actuator, action Action) (bool, error) {
	if action.RevealHint == "" {
		return false, nil
	}
	if err := a.page.Hover(ctx, action.RevealHint); err != nil {
		return false, err
	}
	if err := sleepContext(ctx, a.timing.HoverPause); err != nil {
		return false, err
	}
	return visibleClick(ctx, a, action)
}

func scriptClick(ctx context.Context, a *Actuator, action Action) (bool, error) {
	clicked, err := a.page.ScriptClick(ctx, action.Selector)
	if err != nil || !clicked {
		return false, err
	}
	_ = sleepContext(ctx, a.timing.ScriptClickSettle)
	return true, nil
}
