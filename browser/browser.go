// Package browser abstracts the page automation the crawl engine drives.
// Elements are addressed by CSS selector; the first match is acted upon.
package browser

import (
	"context"
	"time"
)

// ElementState is the condition WaitFor blocks on
type ElementState int

const (
	// StateAttached means at least one matching node is in the DOM
	StateAttached ElementState = iota
	// StateVisible means the first matching node is rendered with a non-zero box
	StateVisible
)

func (s ElementState) String() string {
	if s == StateVisible {
		return "visible"
	}
	return "attached"
}

// Page is one automated tab of the portal
type Page interface {
	Navigate(ctx context.Context, url string) error
	WaitFor(ctx context.Context, selector string, state ElementState, timeout time.Duration) error

	Count(ctx context.Context, selector string) (int, error)
	Exists(ctx context.Context, selector string) (bool, error)
	IsVisible(ctx context.Context, selector string) (bool, error)
	Text(ctx context.Context, selector string) (string, error)
	HTML(ctx context.Context) (string, error)

	ScrollIntoView(ctx context.Context, selector string) error
	// Click dispatches a real mouse click at the element without waiting for it to become actionable
	Click(ctx context.Context, selector string) error
	Hover(ctx context.Context, selector string) error
	SelectOption(ctx context.Context, selector, label string) error

	// RemoveOverlays deletes rendered popup windows and every modal backdrop, returning the popup count
	RemoveOverlays(ctx context.Context, popupSelectors, modalSelectors []string) (int, error)
	// ScriptClick scrolls the first match to the viewport centre and calls its click() from page script
	ScriptClick(ctx context.Context, selector string) (bool, error)
	// ClickFirstVisible script-clicks the first rendered element matching any selector, tried in order
	ClickFirstVisible(ctx context.Context, selectors []string) (bool, error)

	Close() error
}
