package services

import (
	"context"
	"time"

	"github.com/fenilmodi00/nuri-bid-crawler/browser"
	"github.com/fenilmodi00/nuri-bid-crawler/config"
	"github.com/sirupsen/logrus"
)

// ObstructionClearer removes popup windows and modal backdrops that swallow clicks
type ObstructionClearer struct {
	page    browser.Page
	popups  []string
	modals  []string
	settle  time.Duration
	logger  *logrus.Entry
	cleared int
}

// NewObstructionClearer creates a clearer for the configured overlay classes
func NewObstructionClearer(page browser.Page, selectors config.Selectors, timing config.Timing, logger *logrus.Entry) *ObstructionClearer {
	return &ObstructionClearer{
		page:   page,
		popups: selectors.PopupClasses,
		modals: selectors.ModalClasses,
		settle: timing.ObstructionSettle,
		logger: logger.WithField("component", "ObstructionClearer"),
	}
}

// Clear removes rendered popups and every modal backdrop and returns how many popups went away.
// It never fails; a script error counts as nothing cleared.
func (c *ObstructionClearer) Clear(ctx context.Context) int {
	removed, err := c.page.RemoveOverlays(ctx, c.popups, c.modals)
	if err != nil {
		c.logger.WithError(err).Debug("Overlay removal script failed")
		return 0
	}
	if removed > 0 {
		c.cleared += removed
		c.logger.WithField("removed", removed).Debug("Removed blocking popups")
		_ = sleepContext(ctx, c.settle)
	}
	return removed
}

// Cleared returns the total number of popups removed over the clearer's lifetime
func (c *ObstructionClearer) Cleared() int {
	return c.cleared
}
