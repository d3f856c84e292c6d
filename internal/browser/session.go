package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/listing-extractor/internal/listing"
	"github.com/JakeFAU/listing-extractor/internal/pacing"
)

// Manager starts sessions from a Profile.
type Manager struct {
	profile  Profile
	launch   Launcher
	throttle *pacing.Throttle
	logger   *zap.Logger
}

// NewManager builds a Manager. A nil launcher uses LaunchChrome.
func NewManager(profile Profile, launch Launcher, logger *zap.Logger) *Manager {
	profile = profile.WithDefaults()
	if launch == nil {
		launch = LaunchChrome
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		profile:  profile,
		launch:   launch,
		throttle: pacing.NewThrottle(profile.NavigationQPS),
		logger:   logger,
	}
}

// Profile returns the resolved profile.
func (m *Manager) Profile() Profile {
	return m.profile
}

// Start launches one browser with a randomly chosen identity. On failure no session exists
// and the returned error wraps ErrSessionStart.
func (m *Manager) Start(ctx context.Context) (*Session, error) {
	identity := pickIdentity(m.profile.IdentityPool)
	driver, err := m.launch(ctx, LaunchOptions{
		UserAgent:       identity,
		PageLoadTimeout: m.profile.PageLoadTimeout,
		Headless:        m.profile.Headless,
		Throttle:        m.throttle,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSessionStart, err)
	}
	if driver == nil {
		return nil, fmt.Errorf("%w: launcher returned no driver", ErrSessionStart)
	}
	if n := len(driver.Handles()); n != 1 {
		if qerr := driver.Quit(); qerr != nil {
			m.logger.Warn("Failed to quit browser", zap.Error(qerr))
		}
		return nil, fmt.Errorf("%w: expected one main handle, got %d", ErrSessionStart, n)
	}
	m.logger.Info("Browser session started",
		zap.String("identity", identity),
		zap.Duration("page_load_timeout", m.profile.PageLoadTimeout),
		zap.String("main_handle", driver.MainHandle()),
	)
	return &Session{
		driver:   driver,
		identity: identity,
		timeout:  m.profile.PageLoadTimeout,
		wait:     m.profile.WaitRange,
		logger:   m.logger,
	}, nil
}

// Session is one browser lifetime exclusively owned by a pipeline run.
type Session struct {
	driver   Driver
	identity string
	timeout  time.Duration
	wait     pacing.Range

	logger  *zap.Logger
	once    sync.Once
	quitErr error
}

// Identity is the user agent chosen for this session.
func (s *Session) Identity() string { return s.identity }

// PageLoadTimeout is the bound applied to each navigation.
func (s *Session) PageLoadTimeout() time.Duration { return s.timeout }

// WaitRange is the settle interval this session was configured with.
func (s *Session) WaitRange() pacing.Range { return s.wait }

// Teardown quits the browser. Only the first call has an effect.
func (s *Session) Teardown() error {
	s.once.Do(func() {
		s.quitErr = s.driver.Quit()
		if s.quitErr != nil {
			s.logger.Warn("Browser quit failed", zap.Error(s.quitErr))
			return
		}
		s.logger.Info("Browser session closed")
	})
	return s.quitErr
}

// Load navigates the focused tab.
func (s *Session) Load(ctx context.Context, rawURL string) error {
	return s.driver.Load(ctx, rawURL)
}

// Listings snapshots listing elements on the focused tab.
func (s *Session) Listings(ctx context.Context, selector string) ([]listing.Handle, error) {
	return s.driver.Listings(ctx, selector)
}

// MainHandle is the tab the session was started with.
func (s *Session) MainHandle() string { return s.driver.MainHandle() }

// Handles lists open tabs.
func (s *Session) Handles() []string { return s.driver.Handles() }

// Current is the focused tab.
func (s *Session) Current() string { return s.driver.Current() }

// OpenDetail opens the listing's detail tab.
func (s *Session) OpenDetail(ctx context.Context, h listing.Handle, trigger string) error {
	return s.driver.OpenDetail(ctx, h, trigger)
}

// OpenURL opens rawURL in a new tab.
func (s *Session) OpenURL(ctx context.Context, rawURL string) error {
	return s.driver.OpenURL(ctx, rawURL)
}

// SwitchTo focuses handle.
func (s *Session) SwitchTo(ctx context.Context, handle string) error {
	return s.driver.SwitchTo(ctx, handle)
}

// CurrentURL reads the focused tab's location.
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	return s.driver.CurrentURL(ctx)
}

// CloseHandle closes a tab other than main.
func (s *Session) CloseHandle(ctx context.Context, handle string) error {
	return s.driver.CloseHandle(ctx, handle)
}

// Click clicks the first element matching selector on the focused tab.
func (s *Session) Click(ctx context.Context, selector string) error {
	return s.driver.Click(ctx, selector)
}

// Texts returns the visible text of each element matching selector.
func (s *Session) Texts(ctx context.Context, selector string) ([]string, error) {
	return s.driver.Texts(ctx, selector)
}

// Links returns the resolved href of each element matching selector.
func (s *Session) Links(ctx context.Context, selector string) ([]string, error) {
	return s.driver.Links(ctx, selector)
}
