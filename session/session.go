// Package session owns the browser lifecycle of one harvest invocation: one
// browser process, one isolated context with the caller's auth cookies, and
// the pages opened within it. A Session is exclusively owned by a single
// invocation and is never pooled or shared.
package session

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/tejasvajaitly/linkedin-scraper-api/config"
	"github.com/tejasvajaitly/linkedin-scraper-api/models"
	"github.com/tejasvajaitly/linkedin-scraper-api/progress"
)

// Manager launches and tears down browser sessions. It is safe for
// concurrent use; each Acquire produces an independent Session.
type Manager struct {
	cfg            config.BrowserConfig
	activeSessions atomic.Int32
}

// NewManager creates a session Manager from browser configuration.
func NewManager(cfg config.BrowserConfig) *Manager {
	return &Manager{cfg: cfg}
}

// ActiveSessions reports the number of sessions currently alive.
func (m *Manager) ActiveSessions() int {
	return int(m.activeSessions.Load())
}

// Session is one browser process plus one isolated browsing context and the
// pages opened within it. Created at invocation start, destroyed by Release
// on every exit path.
type Session struct {
	browser  *rod.Browser
	incog    *rod.Browser
	launcher *launcher.Launcher
	pages    []*rod.Page
	mgr      *Manager
	cfg      config.BrowserConfig
	released atomic.Bool
}

// Acquire launches a browser, creates an isolated context, and injects the
// caller's auth cookies before any page exists. Cookie injection is
// all-or-nothing: a malformed cookie set fails the whole acquire, and the
// partially built session is torn down.
//
// Each lifecycle step emits paired started/completed progress events so slow
// startups stay visible.
func (m *Manager) Acquire(ctx context.Context, cookies []models.AuthCookie, emit *progress.Emitter) (*Session, error) {
	emit.Emit(models.PhaseBrowserSetup, "launching browser")

	l := launcher.New().
		Headless(m.cfg.Headless).
		NoSandbox(m.cfg.NoSandbox)
	if m.cfg.BrowserBin != "" {
		l = l.Bin(m.cfg.BrowserBin)
	}
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewHarvestError(models.ErrCodeBrowserCrash, "failed to launch browser", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, models.NewHarvestError(models.ErrCodeBrowserCrash, "failed to connect to browser", err)
	}
	emit.Emit(models.PhaseBrowserSetup, "browser launched")

	emit.Emit(models.PhaseBrowserSetup, "creating browser context")
	incog, err := browser.Incognito()
	if err != nil {
		_ = browser.Close()
		l.Kill()
		return nil, models.NewHarvestError(models.ErrCodeBrowserCrash, "failed to create browser context", err)
	}

	s := &Session{
		browser:  browser,
		incog:    incog,
		launcher: l,
		cfg:      m.cfg,
	}
	// Count the session before the remaining failure-prone steps so the
	// Release on any of their exit paths balances the counter.
	m.Adopt(s)

	if len(cookies) > 0 {
		emit.Emit(models.PhaseBrowserSetup, "injecting auth cookies")
		if err := s.injectCookies(cookies); err != nil {
			s.Release()
			return nil, err
		}
		emit.Emit(models.PhaseBrowserSetup, "auth cookies injected")
	}
	emit.Emit(models.PhaseBrowserSetup, "browser context ready")

	return s, nil
}

// Adopt binds a session to the manager's active-session accounting. Release
// undoes the binding exactly once; a session is counted if and only if its
// manager is set, so the counter can never go negative.
func (m *Manager) Adopt(s *Session) {
	s.mgr = m
	m.activeSessions.Add(1)
}

// injectCookies sets all cookies on the isolated context before any page is
// created. A single rejected cookie fails the whole set.
func (s *Session) injectCookies(cookies []models.AuthCookie) error {
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		path := c.Path
		if path == "" {
			path = "/"
		}
		p := &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     path,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
		}
		switch c.SameSite {
		case "Strict":
			p.SameSite = proto.NetworkCookieSameSiteStrict
		case "Lax":
			p.SameSite = proto.NetworkCookieSameSiteLax
		case "None":
			p.SameSite = proto.NetworkCookieSameSiteNone
		}
		params = append(params, p)
	}
	if err := s.incog.SetCookies(params); err != nil {
		return models.NewHarvestError(models.ErrCodeCookieInjection, "failed to inject auth cookies", err)
	}
	return nil
}

// NewPage opens a fresh page in the session's context with the fixed client
// identity applied. The caller is responsible for closing short-lived pages
// (ClosePage); any page still open at Release time is closed there.
func (s *Session) NewPage() (*rod.Page, error) {
	if s.incog == nil {
		return nil, models.NewHarvestError(models.ErrCodeBrowserCrash, "session has no browser context", nil)
	}
	page, err := s.incog.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, models.NewHarvestError(models.ErrCodeBrowserCrash, "failed to open page", err)
	}

	// Client identity and stealth must be installed before any navigation.
	if s.cfg.UserAgent != "" {
		_ = (proto.NetworkSetUserAgentOverride{UserAgent: s.cfg.UserAgent}).Call(page)
	}
	_ = (proto.NetworkSetExtraHTTPHeaders{Headers: identityHeaders()}).Call(page)
	if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
		slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
	}

	s.pages = append(s.pages, page)
	return page, nil
}

// ClosePage closes a page opened with NewPage and forgets it.
func (s *Session) ClosePage(page *rod.Page) {
	if page == nil {
		return
	}
	if err := page.Close(); err != nil {
		slog.Warn("failed to close page", "error", err)
	}
	for i, p := range s.pages {
		if p == page {
			s.pages = append(s.pages[:i], s.pages[i+1:]...)
			break
		}
	}
}

// Release closes all pages and kills the browser process. It runs on every
// exit path of an invocation, never panics, and is safe to call on a
// partially constructed or already released session.
func (s *Session) Release() {
	if s == nil || !s.released.CompareAndSwap(false, true) {
		return
	}
	for _, p := range s.pages {
		if err := p.Close(); err != nil {
			slog.Warn("release: failed to close page", "error", err)
		}
	}
	s.pages = nil
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			slog.Warn("release: failed to close browser", "error", err)
		}
	}
	if s.launcher != nil {
		s.launcher.Kill()
	}
	if s.mgr != nil {
		s.mgr.activeSessions.Add(-1)
	}
	slog.Info("browser session released")
}

// identityHeaders returns the fixed extra headers sent with every request,
// in the proto.NetworkHeaders shape (map[string]gson.JSON).
func identityHeaders() proto.NetworkHeaders {
	headers := map[string]string{
		"Accept-Language": "en-US,en;q=0.9",
	}
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
