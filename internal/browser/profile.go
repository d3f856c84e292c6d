// Package browser owns the lifecycle of one controlled browser session: identity selection,
// page-load timeouts, the tab set and the main handle.
package browser

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/JakeFAU/listing-extractor/internal/listing"
	"github.com/JakeFAU/listing-extractor/internal/pacing"
)

// ErrSessionStart marks a browser that could not be launched. It is fatal for the run.
var ErrSessionStart = errors.New("browser session start failed")

// DefaultPageLoadTimeout bounds a single page navigation.
const DefaultPageLoadTimeout = 15 * time.Second

// DefaultIdentityPool is the set of user agents rotated across sessions.
var DefaultIdentityPool = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/58.0.3029.110 Safari/537.3",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Firefox/54.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Edge/15.15063",
}

// DefaultWaitRange is the settle interval used after loads and tab switches.
var DefaultWaitRange = pacing.Range{Min: 5 * time.Second, Max: 15 * time.Second}

// Profile is the injected session configuration, resolved once per session.
type Profile struct {
	IdentityPool    []string      `mapstructure:"identity_pool"`
	WaitRange       pacing.Range  `mapstructure:"wait_range"`
	PageLoadTimeout time.Duration `mapstructure:"page_load_timeout"`
	Headless        bool          `mapstructure:"headless"`
	NavigationQPS   float64       `mapstructure:"navigation_qps"`
}

// WithDefaults fills unset fields.
func (p Profile) WithDefaults() Profile {
	if len(p.IdentityPool) == 0 {
		p.IdentityPool = append([]string(nil), DefaultIdentityPool...)
	}
	if p.WaitRange == (pacing.Range{}) {
		p.WaitRange = DefaultWaitRange
	}
	if p.PageLoadTimeout <= 0 {
		p.PageLoadTimeout = DefaultPageLoadTimeout
	}
	return p
}

// Validate rejects profiles that cannot produce a usable session.
func (p Profile) Validate() error {
	if err := p.WaitRange.Validate(); err != nil {
		return fmt.Errorf("browser.wait_range: %w", err)
	}
	if p.NavigationQPS < 0 {
		return fmt.Errorf("browser.navigation_qps must be >= 0")
	}
	for i, id := range p.IdentityPool {
		if id == "" {
			return fmt.Errorf("browser.identity_pool[%d] is empty", i)
		}
	}
	return nil
}

// Driver is the window-level automation surface of a live browser.
type Driver interface {
	// Load navigates the focused tab and waits for the document to be ready.
	Load(ctx context.Context, rawURL string) error
	// Listings snapshots the elements matching selector on the focused tab.
	Listings(ctx context.Context, selector string) ([]listing.Handle, error)
	MainHandle() string
	Handles() []string
	Current() string
	// OpenDetail clicks the trigger inside the listing and waits for the tab it opens.
	OpenDetail(ctx context.Context, h listing.Handle, trigger string) error
	// OpenURL opens rawURL in a new tab.
	OpenURL(ctx context.Context, rawURL string) error
	SwitchTo(ctx context.Context, handle string) error
	CurrentURL(ctx context.Context) (string, error)
	CloseHandle(ctx context.Context, handle string) error
	Click(ctx context.Context, selector string) error
	// Texts and Links return one entry per matching element, so the same selector yields
	// aligned slices.
	Texts(ctx context.Context, selector string) ([]string, error)
	Links(ctx context.Context, selector string) ([]string, error)
	Quit() error
}

// LaunchOptions is what a Launcher needs to spawn one browser process.
type LaunchOptions struct {
	UserAgent       string
	PageLoadTimeout time.Duration
	Headless        bool
	Throttle        *pacing.Throttle
}

// Launcher spawns a browser and returns its driver bound to a single main tab.
type Launcher func(ctx context.Context, opts LaunchOptions) (Driver, error)

func pickIdentity(pool []string) string {
	if len(pool) == 0 {
		return ""
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(pool))))
	if err != nil {
		return pool[0]
	}
	return pool[n.Int64()]
}
