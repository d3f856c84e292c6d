// Package browsertest provides an in-memory browser driver for exercising session consumers
// without launching Chrome.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/JakeFAU/listing-extractor/internal/listing"
)

// ErrInjected is the default failure returned by scripted faults.
var ErrInjected = errors.New("injected browser failure")

// Listing scripts one listing element on a fake page.
type Listing struct {
	Markup    string
	DetailURL string
	// MarkupFailures is how many Markup calls fail before one succeeds.
	MarkupFailures int
	// OpenFailures is how many OpenDetail calls fail before one succeeds.
	OpenFailures int
}

// Page scripts the content served for one URL.
type Page struct {
	Listings []*Listing
	Texts    map[string][]string
	Links    map[string][]string
	// ClickErrs fails clicks on the given selectors.
	ClickErrs map[string]error
}

// Driver is a scripted, single-threaded browser. The zero value is not usable; call New.
type Driver struct {
	mu sync.Mutex

	pages    map[string]*Page
	loadErrs map[string]error
	openErrs map[string]error

	// CloseErr makes CloseHandle fail and leave the tab open.
	CloseErr error
	// CurrentURLErr makes CurrentURL fail.
	CurrentURLErr error
	// QuitErr is returned from Quit.
	QuitErr error

	main    string
	current string
	order   []string
	urls    map[string]string
	next    int

	loads  []string
	quits  int
	closes []string
}

// New returns a Driver with a single main tab.
func New() *Driver {
	return &Driver{
		pages:    map[string]*Page{},
		loadErrs: map[string]error{},
		openErrs: map[string]error{},
		main:     "main",
		current:  "main",
		order:    []string{"main"},
		urls:     map[string]string{"main": "about:blank"},
	}
}

// Serve registers the page returned for rawURL.
func (d *Driver) Serve(rawURL string, p *Page) *Driver {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pages[rawURL] = p
	return d
}

// FailLoad makes loading rawURL return err.
func (d *Driver) FailLoad(rawURL string, err error) *Driver {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.loadErrs[rawURL] = err
	return d
}

// FailOpen makes OpenURL(rawURL) return err.
func (d *Driver) FailOpen(rawURL string, err error) *Driver {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.openErrs[rawURL] = err
	return d
}

// Loads lists every URL passed to Load.
func (d *Driver) Loads() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.loads...)
}

// Quits counts Quit calls.
func (d *Driver) Quits() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.quits
}

// Closes lists handles passed to CloseHandle.
func (d *Driver) Closes() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.closes...)
}

// Load implements the driver contract.
func (d *Driver) Load(_ context.Context, rawURL string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.loads = append(d.loads, rawURL)
	if err := d.loadErrs[rawURL]; err != nil {
		return fmt.Errorf("load %s: %w", rawURL, err)
	}
	d.urls[d.current] = rawURL
	return nil
}

// Listings implements the driver contract.
func (d *Driver) Listings(_ context.Context, _ string) ([]listing.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := d.pages[d.urls[d.current]]
	if p == nil {
		return nil, nil
	}
	out := make([]listing.Handle, 0, len(p.Listings))
	for i, l := range p.Listings {
		out = append(out, &Handle{driver: d, index: i, listing: l})
	}
	return out, nil
}

// MainHandle implements the driver contract.
func (d *Driver) MainHandle() string { return d.main }

// Handles implements the driver contract.
func (d *Driver) Handles() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.order...)
}

// Current implements the driver contract.
func (d *Driver) Current() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// OpenDetail implements the driver contract. Focus stays on the opener, as in a real browser.
func (d *Driver) OpenDetail(_ context.Context, h listing.Handle, _ string) error {
	fh, ok := h.(*Handle)
	if !ok {
		return fmt.Errorf("foreign handle %T", h)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if fh.listing.OpenFailures > 0 {
		fh.listing.OpenFailures--
		return fmt.Errorf("open detail %d: %w", fh.index, ErrInjected)
	}
	d.openLocked(fh.listing.DetailURL)
	return nil
}

// OpenURL implements the driver contract.
func (d *Driver) OpenURL(_ context.Context, rawURL string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.openErrs[rawURL]; err != nil {
		return fmt.Errorf("open %s: %w", rawURL, err)
	}
	d.openLocked(rawURL)
	return nil
}

func (d *Driver) openLocked(rawURL string) {
	d.next++
	h := fmt.Sprintf("tab-%d", d.next)
	d.order = append(d.order, h)
	d.urls[h] = rawURL
}

// SwitchTo implements the driver contract.
func (d *Driver) SwitchTo(_ context.Context, handle string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.urls[handle]; !ok {
		return fmt.Errorf("unknown handle %s", handle)
	}
	d.current = handle
	return nil
}

// CurrentURL implements the driver contract.
func (d *Driver) CurrentURL(context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.CurrentURLErr != nil {
		return "", d.CurrentURLErr
	}
	return d.urls[d.current], nil
}

// CloseHandle implements the driver contract.
func (d *Driver) CloseHandle(_ context.Context, handle string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closes = append(d.closes, handle)
	if handle == d.main {
		return errors.New("refusing to close main handle")
	}
	if _, ok := d.urls[handle]; !ok {
		return fmt.Errorf("unknown handle %s", handle)
	}
	if d.CloseErr != nil {
		return d.CloseErr
	}
	delete(d.urls, handle)
	for i, h := range d.order {
		if h == handle {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	if d.current == handle {
		d.current = ""
	}
	return nil
}

// Click implements the driver contract.
func (d *Driver) Click(_ context.Context, selector string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p := d.pages[d.urls[d.current]]; p != nil {
		if err := p.ClickErrs[selector]; err != nil {
			return err
		}
	}
	return nil
}

// Texts implements the driver contract.
func (d *Driver) Texts(_ context.Context, selector string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p := d.pages[d.urls[d.current]]; p != nil {
		return append([]string(nil), p.Texts[selector]...), nil
	}
	return nil, nil
}

// Links implements the driver contract.
func (d *Driver) Links(_ context.Context, selector string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p := d.pages[d.urls[d.current]]; p != nil {
		return append([]string(nil), p.Links[selector]...), nil
	}
	return nil, nil
}

// Quit implements the driver contract.
func (d *Driver) Quit() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.quits++
	return d.QuitErr
}

// Handle is a scripted listing reference.
type Handle struct {
	driver  *Driver
	index   int
	listing *Listing
}

// Index implements listing.Handle.
func (h *Handle) Index() int { return h.index }

// Markup implements listing.Handle.
func (h *Handle) Markup(context.Context) (string, error) {
	h.driver.mu.Lock()
	defer h.driver.mu.Unlock()
	if h.listing.MarkupFailures > 0 {
		h.listing.MarkupFailures--
		return "", fmt.Errorf("stale listing %d: %w", h.index, ErrInjected)
	}
	return h.listing.Markup, nil
}
