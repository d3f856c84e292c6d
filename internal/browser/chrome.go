package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"github.com/JakeFAU/listing-extractor/internal/listing"
	"github.com/JakeFAU/listing-extractor/internal/pacing"
)

// ErrNoDetailTab is returned when a click did not open a new tab in time.
var ErrNoDetailTab = errors.New("no new tab opened")

// ErrUnknownHandle is returned for tab handles this driver does not own.
var ErrUnknownHandle = errors.New("unknown window handle")

// strayLookupTimeout bounds the target listing done by Handles.
const strayLookupTimeout = 2 * time.Second

type tab struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// ChromeDriver drives a headless Chrome through chromedp. It is not safe for concurrent use;
// one goroutine owns a session.
type ChromeDriver struct {
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	timeout         time.Duration
	throttle        *pacing.Throttle

	mu      sync.Mutex
	main    string
	current string
	order   []string
	tabs    map[string]*tab
	closed  map[string]struct{}
}

// LaunchChrome is the default Launcher.
func LaunchChrome(ctx context.Context, opts LaunchOptions) (Driver, error) {
	return NewChromeDriver(ctx, opts)
}

// NewChromeDriver spawns Chrome with the given identity and attaches to its first tab.
func NewChromeDriver(ctx context.Context, opts LaunchOptions) (*ChromeDriver, error) {
	if opts.PageLoadTimeout <= 0 {
		opts.PageLoadTimeout = DefaultPageLoadTimeout
	}
	allocOpts := chromedp.DefaultExecAllocatorOptions[:]
	allocOpts = append(allocOpts,
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	// The browser outlives the start context; only the launch itself is bounded by ctx.
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)

	warmup := chromedp.Tasks{}
	if opts.UserAgent != "" {
		warmup = append(warmup, emulation.SetUserAgentOverride(opts.UserAgent))
	}
	stop := forwardCancel(ctx, browserCancel)
	err := chromedp.Run(browserCtx, warmup)
	stop()
	if err != nil {
		browserCancel()
		allocatorCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	main := chromedp.FromContext(browserCtx).Target.TargetID.String()
	return &ChromeDriver{
		allocatorCancel: allocatorCancel,
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
		timeout:         opts.PageLoadTimeout,
		throttle:        opts.Throttle,
		main:            main,
		current:         main,
		order:           []string{main},
		tabs:            map[string]*tab{main: {ctx: browserCtx, cancel: browserCancel}},
		closed:          map[string]struct{}{},
	}, nil
}

// Load navigates the focused tab, bounded by the page-load timeout.
func (d *ChromeDriver) Load(ctx context.Context, rawURL string) error {
	if err := d.throttle.Wait(ctx, rawURL); err != nil {
		return fmt.Errorf("navigation rate limit: %w", err)
	}
	t, err := d.focused()
	if err != nil {
		return err
	}
	err = d.runTimed(ctx, t, d.timeout,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("load %s: %w", rawURL, err)
	}
	return nil
}

// Listings snapshots the elements matching selector. Zero matches is not an error.
func (d *ChromeDriver) Listings(ctx context.Context, selector string) ([]listing.Handle, error) {
	t, err := d.focused()
	if err != nil {
		return nil, err
	}
	var nodes []*cdp.Node
	if err := d.run(ctx, t, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return nil, fmt.Errorf("query listings: %w", err)
	}
	out := make([]listing.Handle, 0, len(nodes))
	for i, n := range nodes {
		out = append(out, &chromeListing{driver: d, tab: t, node: n, index: i})
	}
	return out, nil
}

// MainHandle is the first tab's target ID.
func (d *ChromeDriver) MainHandle() string {
	return d.main
}

// Handles returns open tabs in opening order. Page targets that appeared without being
// attached, such as a tab that opened after its wait timed out, are adopted first so they can
// be closed like any other.
func (d *ChromeDriver) Handles() []string {
	d.adoptStrays()
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.order...)
}

// Current is the focused tab.
func (d *ChromeDriver) Current() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// OpenDetail clicks trigger inside the listing element and attaches to the tab it opens.
func (d *ChromeDriver) OpenDetail(ctx context.Context, h listing.Handle, trigger string) error {
	l, ok := h.(*chromeListing)
	if !ok || l.driver != d {
		return fmt.Errorf("listing %d does not belong to this session", h.Index())
	}
	return d.openTab(ctx, l.tab,
		chromedp.ScrollIntoView(trigger, chromedp.ByQuery, chromedp.FromNode(l.node)),
		chromedp.Click(trigger, chromedp.ByQuery, chromedp.FromNode(l.node)),
	)
}

// OpenURL opens rawURL in a new tab through window.open.
func (d *ChromeDriver) OpenURL(ctx context.Context, rawURL string) error {
	t, err := d.focused()
	if err != nil {
		return err
	}
	return d.openTab(ctx, t, chromedp.Evaluate(fmt.Sprintf("void window.open(%q, '_blank')", rawURL), nil))
}

func (d *ChromeDriver) openTab(ctx context.Context, opener *tab, actions ...chromedp.Action) error {
	waitCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	ch := chromedp.WaitNewTarget(opener.ctx, func(info *target.Info) bool {
		return info.Type == "page"
	})
	if err := d.runTimed(ctx, opener, d.timeout, actions...); err != nil {
		return fmt.Errorf("trigger new tab: %w", err)
	}
	var id target.ID
	select {
	case id = <-ch:
	case <-waitCtx.Done():
		return fmt.Errorf("%w: %w", ErrNoDetailTab, waitCtx.Err())
	}
	tabCtx, tabCancel := chromedp.NewContext(d.browserCtx, chromedp.WithTargetID(id))
	// The attaching Run must use the tab context itself; a derived context would detach on return.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		return fmt.Errorf("attach tab %s: %w", id, err)
	}
	d.track(id.String(), &tab{ctx: tabCtx, cancel: tabCancel})
	return nil
}

func (d *ChromeDriver) track(handle string, t *tab) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tabs[handle] = t
	d.order = append(d.order, handle)
}

func (d *ChromeDriver) adoptStrays() {
	lookupCtx, cancel := context.WithTimeout(d.browserCtx, strayLookupTimeout)
	defer cancel()
	infos, err := chromedp.Targets(lookupCtx)
	if err != nil {
		return
	}
	for _, info := range infos {
		if info.Type != "page" {
			continue
		}
		handle := info.TargetID.String()
		d.mu.Lock()
		_, known := d.tabs[handle]
		_, gone := d.closed[handle]
		d.mu.Unlock()
		if known || gone {
			continue
		}
		tabCtx, tabCancel := chromedp.NewContext(d.browserCtx, chromedp.WithTargetID(info.TargetID))
		if err := chromedp.Run(tabCtx); err != nil {
			tabCancel()
			continue
		}
		d.track(handle, &tab{ctx: tabCtx, cancel: tabCancel})
	}
}

// SwitchTo focuses handle and brings it to the front.
func (d *ChromeDriver) SwitchTo(ctx context.Context, handle string) error {
	d.mu.Lock()
	t, ok := d.tabs[handle]
	d.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownHandle, handle)
	}
	if err := d.run(ctx, t, page.BringToFront()); err != nil {
		return fmt.Errorf("focus %s: %w", handle, err)
	}
	d.mu.Lock()
	d.current = handle
	d.mu.Unlock()
	return nil
}

// CurrentURL reads the focused tab's location after waiting for its document.
func (d *ChromeDriver) CurrentURL(ctx context.Context) (string, error) {
	t, err := d.focused()
	if err != nil {
		return "", err
	}
	var loc string
	if err := d.runTimed(ctx, t, d.timeout, chromedp.WaitReady("body", chromedp.ByQuery), chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return loc, nil
}

// CloseHandle closes a non-main tab. The tab is forgotten even when the close call fails.
func (d *ChromeDriver) CloseHandle(ctx context.Context, handle string) error {
	if handle == d.main {
		return fmt.Errorf("refusing to close main handle %s", handle)
	}
	d.mu.Lock()
	t, ok := d.tabs[handle]
	if ok {
		delete(d.tabs, handle)
		d.closed[handle] = struct{}{}
		for i, h := range d.order {
			if h == handle {
				d.order = append(d.order[:i], d.order[i+1:]...)
				break
			}
		}
		if d.current == handle {
			d.current = ""
		}
	}
	d.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownHandle, handle)
	}
	err := d.run(ctx, t, page.Close())
	t.cancel()
	if err != nil {
		return fmt.Errorf("close %s: %w", handle, err)
	}
	return nil
}

// Click clicks the first element matching selector on the focused tab.
func (d *ChromeDriver) Click(ctx context.Context, selector string) error {
	t, err := d.focused()
	if err != nil {
		return err
	}
	if err := d.runTimed(ctx, t, d.timeout, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	return nil
}

// Texts returns the rendered text of every element matching selector, in document order.
// Elements without text yield empty strings so results align with Links.
func (d *ChromeDriver) Texts(ctx context.Context, selector string) ([]string, error) {
	return d.collect(ctx, selector, "innerText")
}

// Links returns the absolute href of every element matching selector, in document order.
func (d *ChromeDriver) Links(ctx context.Context, selector string) ([]string, error) {
	return d.collect(ctx, selector, "href")
}

func (d *ChromeDriver) collect(ctx context.Context, selector, prop string) ([]string, error) {
	t, err := d.focused()
	if err != nil {
		return nil, err
	}
	expr := fmt.Sprintf(
		"Array.from(document.querySelectorAll(%q)).map(e => (e.%s || '').trim())",
		selector, prop,
	)
	var out []string
	if err := d.run(ctx, t, chromedp.Evaluate(expr, &out)); err != nil {
		return nil, fmt.Errorf("collect %s of %s: %w", prop, selector, err)
	}
	return out, nil
}

// Quit closes every tab and terminates the browser process.
func (d *ChromeDriver) Quit() error {
	d.mu.Lock()
	for h, t := range d.tabs {
		if h != d.main {
			t.cancel()
		}
	}
	d.tabs = map[string]*tab{}
	d.order = nil
	d.mu.Unlock()

	err := chromedp.Cancel(d.browserCtx)
	d.browserCancel()
	d.allocatorCancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("quit browser: %w", err)
	}
	return nil
}

func (d *ChromeDriver) focused() (*tab, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.tabs[d.current]
	if !ok {
		return nil, fmt.Errorf("%w: no focused tab", ErrUnknownHandle)
	}
	return t, nil
}

func (d *ChromeDriver) run(ctx context.Context, t *tab, actions ...chromedp.Action) error {
	taskCtx, cancel := context.WithCancel(t.ctx)
	defer cancel()
	stop := forwardCancel(ctx, cancel)
	defer stop()
	if err := chromedp.Run(taskCtx, actions...); err != nil {
		return fmt.Errorf("chromedp run: %w", err)
	}
	return nil
}

func (d *ChromeDriver) runTimed(ctx context.Context, t *tab, timeout time.Duration, actions ...chromedp.Action) error {
	taskCtx, cancel := context.WithTimeout(t.ctx, timeout)
	defer cancel()
	stop := forwardCancel(ctx, cancel)
	defer stop()
	if err := chromedp.Run(taskCtx, actions...); err != nil {
		return fmt.Errorf("chromedp run: %w", err)
	}
	return nil
}

// forwardCancel cancels a task context when the caller's context ends.
func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}

type chromeListing struct {
	driver *ChromeDriver
	tab    *tab
	node   *cdp.Node
	index  int
}

func (l *chromeListing) Index() int { return l.index }

func (l *chromeListing) Markup(ctx context.Context) (string, error) {
	var html string
	if err := l.driver.run(ctx, l.tab, chromedp.OuterHTML([]cdp.NodeID{l.node.NodeID}, &html, chromedp.ByNodeID)); err != nil {
		return "", fmt.Errorf("outer html: %w", err)
	}
	return html, nil
}
