package services

import (
	"context"
	"strings"
	"time"

	"github.com/fenilmodi00/nuri-bid-crawler/browser"
	"github.com/fenilmodi00/nuri-bid-crawler/config"
	"github.com/sirupsen/logrus"
)

// AdvanceOutcome says which pagination control, if any, was used
type AdvanceOutcome string

const (
	NoMoreRows       AdvanceOutcome = "no_more_rows"
	AdvancedNumbered AdvanceOutcome = "advanced_numbered"
	AdvancedByArrow  AdvanceOutcome = "advanced_by_arrow"
	NoNextControl    AdvanceOutcome = "no_next_control"
)

// AdvanceResult reports an advance attempt. Changed is only true once the first
// row of the listing has been seen to change.
type AdvanceResult struct {
	Outcome AdvanceOutcome
	Target  int
	Changed bool
}

// PaginationTracker moves through listing pages and confirms each move by the leading row
type PaginationTracker struct {
	page      browser.Page
	actuator  *Actuator
	selectors config.Selectors
	timing    config.Timing
	logger    *logrus.Entry
}

// NewPaginationTracker creates a new tracker for the listing on page
func NewPaginationTracker(page browser.Page, actuator *Actuator, selectors config.Selectors, timing config.Timing, logger *logrus.Entry) *PaginationTracker {
	return &PaginationTracker{
		page:      page,
		actuator:  actuator,
		selectors: selectors,
		timing:    timing,
		logger:    logger.WithField("component", "PaginationTracker"),
	}
}

// CurrentPage reads the highlighted page number, 1 when there is none
func (p *PaginationTracker) CurrentPage(ctx context.Context) int {
	text, err := p.page.Text(ctx, p.selectors.PageSelected)
	if err != nil {
		return 1
	}
	if n, ok := ParseLeadingInt(text); ok && n > 0 {
		return n
	}
	return 1
}

// Fingerprint is the bid number of the first rendered row, empty when the grid is empty
func (p *PaginationTracker) Fingerprint(ctx context.Context) string {
	text, err := p.page.Text(ctx, p.selectors.ListingRows+" "+p.selectors.RowBidNumber)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}

// Advance clicks the control for page current+1, preferring its numbered link over the
// next-group arrow, then waits for the listing to change.
func (p *PaginationTracker) Advance(ctx context.Context, current int) AdvanceResult {
	logger := p.logger.WithFields(logrus.Fields{
		"method": "Advance",
		"page":   current,
	})
	before := p.Fingerprint(ctx)
	target := current + 1

	result := AdvanceResult{Target: target}
	var selector string
	if ok, _ := p.page.Exists(ctx, p.selectors.PageLink(target)); ok {
		result.Outcome = AdvancedNumbered
		selector = p.selectors.PageLink(target)
	} else if ok, _ := p.page.Exists(ctx, p.selectors.PageNextArrow); ok {
		result.Outcome = AdvancedByArrow
		selector = p.selectors.PageNextArrow
	} else {
		result.Outcome = NoNextControl
		logger.Info("No further pagination control")
		return result
	}

	if !p.actuator.Act(ctx, Action{
		Selector: selector,
		Label:    string(result.Outcome),
		Timeout:  p.timing.ClickTimeout,
		Retries:  p.timing.ClickRetries,
	}) {
		logger.WithField("selector", selector).Warn("Pagination click failed")
	}

	result.Changed = p.waitForChange(ctx, before)
	logger.WithFields(logrus.Fields{
		"outcome": result.Outcome,
		"target":  target,
		"changed": result.Changed,
	}).Info("Pagination advance finished")
	return result
}

func (p *PaginationTracker) waitForChange(ctx context.Context, before string) bool {
	deadline := time.Now().Add(p.timing.PageChangeTimeout)
	for {
		if fp := p.Fingerprint(ctx); fp != "" && fp != before {
			return true
		}
		if !time.Now().Before(deadline) {
			return false
		}
		if err := sleepContext(ctx, p.timing.PagePollInterval); err != nil {
			return false
		}
	}
}
