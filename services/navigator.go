package services

import (
	"context"
	"fmt"

	"github.com/fenilmodi00/nuri-bid-crawler/browser"
	"github.com/fenilmodi00/nuri-bid-crawler/config"
	"github.com/fenilmodi00/nuri-bid-crawler/shared"
	"github.com/sirupsen/logrus"
)

// Navigator drives the portal from its landing page to the bid listing and back from detail views
type Navigator struct {
	page         browser.Page
	actuator     *Actuator
	clearer      *ObstructionClearer
	targetURL    string
	statusFilter string
	selectors    config.Selectors
	timing       config.Timing
	logger       *logrus.Entry
}

// NavigatorConfig is the subset of configuration the navigator needs
type NavigatorConfig struct {
	TargetURL    string
	StatusFilter string
	Selectors    config.Selectors
	Timing       config.Timing
}

// NewNavigator creates a new navigator for the portal menus and search form
func NewNavigator(page browser.Page, actuator *Actuator, clearer *ObstructionClearer, cfg NavigatorConfig, logger *logrus.Entry) *Navigator {
	return &Navigator{
		page:         page,
		actuator:     actuator,
		clearer:      clearer,
		targetURL:    cfg.TargetURL,
		statusFilter: cfg.StatusFilter,
		selectors:    cfg.Selectors,
		timing:       cfg.Timing,
		logger:       logger.WithField("component", "Navigator"),
	}
}

// navigationError builds a fatal error that always matches shared.ErrNavigationFailed
func navigationError(code, message string, cause error) error {
	wrapped := shared.ErrNavigationFailed
	if cause != nil {
		wrapped = fmt.Errorf("%w: %w", shared.ErrNavigationFailed, cause)
	}
	return shared.NewServiceError(shared.ErrorCategoryNavigation, code, message, "Navigator", "OpenListing", false, wrapped)
}

// OpenListing loads the portal, walks the menu to the bid notice list and runs the search.
// Any required step that cannot be completed is fatal for the run.
func (n *Navigator) OpenListing(ctx context.Context) error {
	logger := n.logger.WithField("method", "OpenListing")
	sel := n.selectors
	t := n.timing

	logger.WithField("url", n.targetURL).Info("Opening portal")
	if err := n.page.Navigate(ctx, n.targetURL); err != nil {
		return navigationError("NAVIGATE_FAILED", "failed to load portal", err)
	}

	if !n.actuator.Act(ctx, Action{Selector: sel.MenuBidNotices, Label: "menu:bid_notices", Timeout: t.Menu1Timeout, Retries: t.Menu1Retries}) {
		return navigationError("MENU_FAILED", "bid notice menu", nil)
	}
	if err := sleepContext(ctx, t.MenuSettle); err != nil {
		return err
	}

	// The intermediate menu level only exists in some layouts
	if count, err := n.page.Count(ctx, sel.MenuBidSubmenu); err == nil && count > 0 {
		ok := n.actuator.Act(ctx, Action{
			Selector:   sel.MenuBidSubmenu,
			Label:      "menu:bid_submenu",
			Timeout:    t.Menu2Timeout,
			Retries:    t.Menu2Retries,
			RevealHint: sel.MenuBidNotices,
		})
		if !ok {
			logger.Warn("Submenu click failed, continuing to listing menu")
		}
	}
	if err := sleepContext(ctx, t.SubmenuSettle); err != nil {
		return err
	}

	if !n.actuator.Act(ctx, Action{
		Selector:   sel.MenuBidNoticeList,
		Label:      "menu:bid_notice_list",
		Timeout:    t.Menu3Timeout,
		Retries:    t.Menu3Retries,
		RevealHint: sel.MenuBidNotices,
	}) {
		return navigationError("MENU_FAILED", "bid notice list menu", nil)
	}

	if err := n.page.WaitFor(ctx, sel.SearchButton, browser.StateVisible, t.NavigationTimeout); err != nil {
		return navigationError("SEARCH_FORM_MISSING", "search form never appeared", err)
	}

	if n.statusFilter != "" {
		if err := n.page.SelectOption(ctx, sel.StatusSelect, n.statusFilter); err != nil {
			logger.WithFields(logrus.Fields{
				"status_filter": n.statusFilter,
				"error":         err.Error(),
			}).Warn("Could not apply status filter, searching unfiltered")
		}
	}

	if err := n.search(ctx); err != nil {
		return err
	}

	if err := n.page.WaitFor(ctx, sel.ListingRows, browser.StateAttached, t.NavigationTimeout); err != nil {
		if total, ok := n.totalCount(ctx); ok && total == 0 {
			logger.Info("Search returned no announcements")
			return nil
		}
		return navigationError("LISTING_MISSING", "listing rows never appeared", err)
	}
	if err := sleepContext(ctx, t.ListingSettle); err != nil {
		return err
	}

	if total, ok := n.totalCount(ctx); ok {
		logger.WithField("total_count", total).Info("Listing loaded")
	} else {
		logger.Info("Listing loaded")
	}
	return nil
}

func (n *Navigator) search(ctx context.Context) error {
	n.clearer.Clear(ctx)
	if !n.actuator.Act(ctx, Action{
		Selector: n.selectors.SearchButton,
		Label:    "search",
		Timeout:  n.timing.ClickTimeout,
		Retries:  n.timing.ClickRetries,
	}) {
		return navigationError("SEARCH_FAILED", "search button", nil)
	}
	return nil
}

func (n *Navigator) totalCount(ctx context.Context) (int, bool) {
	text, err := n.page.Text(ctx, n.selectors.TotalCount)
	if err != nil {
		return 0, false
	}
	return ParseLeadingInt(text)
}

// ReturnToListing restores the listing after a detail visit. It first uses the detail view's
// list button; when that does not bring the rows back it re-runs the search, which resets
// the listing to its first page and is reported through researched.
func (n *Navigator) ReturnToListing(ctx context.Context) (researched bool, err error) {
	logger := n.logger.WithField("method", "ReturnToListing")
	sel := n.selectors
	t := n.timing

	n.clearer.Clear(ctx)
	if err := sleepContext(ctx, t.RecoverySettle); err != nil {
		return false, err
	}

	clicked, clickErr := n.page.ClickFirstVisible(ctx, sel.ListButtons)
	if clickErr == nil && clicked {
		if err := n.page.WaitFor(ctx, sel.ListingRows, browser.StateVisible, t.ListRestoreTimeout); err == nil {
			return false, nil
		}
	}

	logger.WithFields(logrus.Fields{
		"list_button_clicked": clicked,
		"click_error":         fmt.Sprint(clickErr),
	}).Warn("List button did not restore the listing, re-running search")

	// a failed recovery is as fatal as a failed navigation
	fatal := fmt.Errorf("%w: %w", shared.ErrRecoveryFailed, shared.ErrNavigationFailed)
	if err := n.search(ctx); err != nil {
		return true, shared.NewServiceError(shared.ErrorCategoryRecovery, "RESEARCH_FAILED",
			"search fallback failed", "Navigator", "ReturnToListing", false, fatal)
	}
	if err := n.page.WaitFor(ctx, sel.ListingRows, browser.StateVisible, t.ListRestoreTimeout); err != nil {
		return true, shared.NewServiceError(shared.ErrorCategoryRecovery, "LISTING_NOT_RESTORED",
			fmt.Sprintf("listing did not return after search: %v", err), "Navigator", "ReturnToListing", false, fatal)
	}
	return true, nil
}
