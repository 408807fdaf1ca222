package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// ChromeOptions configures the headless browser session
type ChromeOptions struct {
	Headless          bool
	UserAgent         string
	NavigationTimeout time.Duration
	// ActionTimeout bounds single DOM queries and clicks that have no explicit timeout
	ActionTimeout time.Duration
}

// ChromePage drives a Chrome tab through the DevTools protocol
type ChromePage struct {
	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	opts        ChromeOptions
	logger      *logrus.Entry
}

// NewChromePage launches Chrome and opens a 1920x1080 tab
func NewChromePage(opts ChromeOptions, logger *logrus.Entry) (*ChromePage, error) {
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = 30 * time.Second
	}
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	logger = logger.WithField("component", "ChromePage")

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.UserAgent(opts.UserAgent),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithErrorf(logger.Debugf))

	if err := chromedp.Run(tabCtx, chromedp.EmulateViewport(1920, 1080)); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	logger.WithField("headless", opts.Headless).Info("Browser session started")

	return &ChromePage{
		ctx:         tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		opts:        opts,
		logger:      logger,
	}, nil
}

// run executes actions on the tab, bounded by timeout and aborted when the caller's ctx ends
func (p *ChromePage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (p *ChromePage) evaluate(ctx context.Context, script string, out interface{}) error {
	return p.run(ctx, p.opts.ActionTimeout, chromedp.Evaluate(script, out))
}

func (p *ChromePage) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, p.opts.NavigationTimeout, chromedp.Navigate(url))
}

func (p *ChromePage) WaitFor(ctx context.Context, selector string, state ElementState, timeout time.Duration) error {
	action := chromedp.WaitReady(selector, chromedp.ByQuery)
	if state == StateVisible {
		action = chromedp.WaitVisible(selector, chromedp.ByQuery)
	}
	if err := p.run(ctx, timeout, action); err != nil {
		return fmt.Errorf("wait for %s %s: %w", selector, state, err)
	}
	return nil
}

func (p *ChromePage) nodes(ctx context.Context, selector string) ([]*cdp.Node, error) {
	var nodes []*cdp.Node
	err := p.run(ctx, p.opts.ActionTimeout, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)))
	return nodes, err
}

func (p *ChromePage) Count(ctx context.Context, selector string) (int, error) {
	nodes, err := p.nodes(ctx, selector)
	return len(nodes), err
}

func (p *ChromePage) Exists(ctx context.Context, selector string) (bool, error) {
	n, err := p.Count(ctx, selector)
	return n > 0, err
}

func (p *ChromePage) IsVisible(ctx context.Context, selector string) (bool, error) {
	var visible bool
	err := p.evaluate(ctx, isVisibleScript(selector), &visible)
	return visible, err
}

func (p *ChromePage) Text(ctx context.Context, selector string) (string, error) {
	var text string
	err := p.evaluate(ctx, textScript(selector), &text)
	return text, err
}

func (p *ChromePage) HTML(ctx context.Context) (string, error) {
	var html string
	err := p.run(ctx, p.opts.ActionTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (p *ChromePage) ScrollIntoView(ctx context.Context, selector string) error {
	return p.run(ctx, p.opts.ActionTimeout, chromedp.ScrollIntoView(selector, chromedp.ByQuery))
}

func (p *ChromePage) Click(ctx context.Context, selector string) error {
	nodes, err := p.nodes(ctx, selector)
	if err != nil {
		return err
	}
	if len(nodes) == 0 {
		return fmt.Errorf("click %s: element not attached", selector)
	}
	if err := p.run(ctx, p.opts.ActionTimeout, chromedp.MouseClickNode(nodes[0])); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	return nil
}

func (p *ChromePage) Hover(ctx context.Context, selector string) error {
	var ok bool
	if err := p.evaluate(ctx, hoverScript(selector), &ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("hover %s: element not attached", selector)
	}
	return nil
}

func (p *ChromePage) SelectOption(ctx context.Context, selector, label string) error {
	var ok bool
	if err := p.evaluate(ctx, selectOptionScript(selector, label), &ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("select %q in %s: no such option", label, selector)
	}
	return nil
}

func (p *ChromePage) RemoveOverlays(ctx context.Context, popupSelectors, modalSelectors []string) (int, error) {
	var removed int
	err := p.evaluate(ctx, removeOverlaysScript(popupSelectors, modalSelectors), &removed)
	return removed, err
}

func (p *ChromePage) ScriptClick(ctx context.Context, selector string) (bool, error) {
	var clicked bool
	err := p.evaluate(ctx, scriptClickScript(selector), &clicked)
	return clicked, err
}

func (p *ChromePage) ClickFirstVisible(ctx context.Context, selectors []string) (bool, error) {
	var clicked bool
	err := p.evaluate(ctx, clickFirstVisibleScript(selectors), &clicked)
	return clicked, err
}

// Close shuts the tab and the browser process
func (p *ChromePage) Close() error {
	err := chromedp.Cancel(p.ctx)
	p.cancelTab()
	p.cancelAlloc()
	p.logger.Info("Browser session closed")
	return err
}
