// Package chromehost hosts tab pages in Chrome over the DevTools protocol.
// Every tab is one page target; its CDP events are translated into
// surface events.
package chromehost

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"github.com/pinchtab/surf/internal/config"
	"github.com/pinchtab/surf/internal/surface"
)

const (
	chromeStartTimeout = 30 * time.Second
	createTimeout      = 10 * time.Second
	closeTimeout       = 5 * time.Second
)

// Host implements surface.Host on a running Chrome.
type Host struct {
	browserCtx context.Context
	stop       context.CancelFunc

	mu     sync.Mutex
	pages  map[string]*pageSurface
	popups map[string]string // popup target → opener target
}

// Launch starts Chrome (or connects to CDP_URL) and returns a Host for it.
func Launch(cfg *config.RuntimeConfig) (*Host, error) {
	allocCtx, allocCancel, err := setupAllocator(cfg)
	if err != nil {
		return nil, err
	}
	browserCtx, browserCancel, err := startChrome(allocCtx)
	if err != nil {
		allocCancel()
		slog.Error("chrome initialization failed", "headless", cfg.Headless, "err", err)
		return nil, fmt.Errorf("failed to start chrome: %w", err)
	}
	h := newHost(browserCtx, func() {
		browserCancel()
		allocCancel()
	})
	if err := h.watchTargets(); err != nil {
		h.Close()
		return nil, fmt.Errorf("target discovery: %w", err)
	}
	slog.Info("chrome initialized", "headless", cfg.Headless, "profile", cfg.ProfileDir, "remote", cfg.CdpURL != "")
	return h, nil
}

func newHost(browserCtx context.Context, stop context.CancelFunc) *Host {
	return &Host{
		browserCtx: browserCtx,
		stop:       stop,
		pages:      make(map[string]*pageSurface),
		popups:     make(map[string]string),
	}
}

func setupAllocator(cfg *config.RuntimeConfig) (context.Context, context.CancelFunc, error) {
	if cfg.CdpURL != "" {
		slog.Info("connecting to Chrome", "url", cfg.CdpURL)
		ctx, cancel := chromedp.NewRemoteAllocator(context.Background(), cfg.CdpURL)
		return ctx, cancel, nil
	}
	if err := prepareProfile(cfg.ProfileDir); err != nil {
		return nil, nil, fmt.Errorf("profile dir: %w", err)
	}
	slog.Info("launching Chrome", "profile", cfg.ProfileDir, "headless", cfg.Headless)
	ctx, cancel := chromedp.NewExecAllocator(context.Background(), buildChromeOpts(cfg)...)
	return ctx, cancel, nil
}

func buildChromeOpts(cfg *config.RuntimeConfig) []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.UserDataDir(cfg.ProfileDir),
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-session-crashed-bubble", true),
		chromedp.Flag("hide-crash-restore-bubble", true),
		chromedp.Flag("disable-sync", true),
		chromedp.WindowSize(1280, 800),
	}
	if cfg.ChromeBinary != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ChromeBinary))
	}
	if cfg.ChromeExtraFlags != "" {
		for _, f := range strings.Fields(cfg.ChromeExtraFlags) {
			if k, v, ok := strings.Cut(f, "="); ok {
				opts = append(opts, chromedp.Flag(strings.TrimLeft(k, "-"), v))
			} else {
				opts = append(opts, chromedp.Flag(strings.TrimLeft(f, "-"), true))
			}
		}
	}
	if cfg.Headless {
		opts = append(opts, chromedp.Headless)
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	return opts
}

func startChrome(allocCtx context.Context) (context.Context, context.CancelFunc, error) {
	bCtx, bCancel := chromedp.NewContext(allocCtx)

	startCtx, startDone := context.WithTimeout(context.Background(), chromeStartTimeout)
	defer startDone()

	errCh := make(chan error, 1)
	go func() {
		errCh <- chromedp.Run(bCtx)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			bCancel()
			return nil, nil, err
		}
		return bCtx, bCancel, nil
	case <-startCtx.Done():
		bCancel()
		return nil, nil, fmt.Errorf("timed out after %s", chromeStartTimeout)
	}
}

// watchTargets subscribes to browser-wide target events. Titles and popups
// are only reported there.
func (h *Host) watchTargets() error {
	chromedp.ListenBrowser(h.browserCtx, h.handleBrowser)
	return chromedp.Run(h.browserCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		return target.SetDiscoverTargets(true).Do(ctx)
	}))
}

func (h *Host) handleBrowser(ev interface{}) {
	switch e := ev.(type) {
	case *target.EventTargetCreated:
		if info := e.TargetInfo; info != nil && info.Type == "page" && info.OpenerID != "" {
			h.popupCreated(info)
		}
	case *target.EventTargetInfoChanged:
		info := e.TargetInfo
		if info == nil {
			return
		}
		if h.popupNavigated(info) {
			return
		}
		if p := h.page(string(info.TargetID)); p != nil {
			p.setTitle(info.Title)
		}
	case *target.EventTargetDestroyed:
		h.mu.Lock()
		p := h.pages[string(e.TargetID)]
		delete(h.pages, string(e.TargetID))
		delete(h.popups, string(e.TargetID))
		h.mu.Unlock()
		if p != nil {
			slog.Debug("page target destroyed", "content", e.TargetID)
			p.close()
		}
	}
}

func (h *Host) popupCreated(info *target.Info) {
	opener := string(info.OpenerID)
	if h.page(opener) == nil {
		return
	}
	id := string(info.TargetID)
	h.mu.Lock()
	h.popups[id] = opener
	h.mu.Unlock()
	h.popupNavigated(info)
}

// popupNavigated reports a popup once its URL is known. The popup target
// itself is closed when the request is prevented; the shell opens its own
// tab instead.
func (h *Host) popupNavigated(info *target.Info) bool {
	id := string(info.TargetID)
	h.mu.Lock()
	opener, ok := h.popups[id]
	if ok && info.URL != "" && info.URL != "about:blank" {
		delete(h.popups, id)
	}
	h.mu.Unlock()
	if !ok {
		return false
	}
	if info.URL == "" || info.URL == "about:blank" {
		return true
	}
	p := h.page(opener)
	if p == nil {
		return true
	}
	p.emit(surface.NewWindowRequest(info.URL, func() {
		go func() { _ = h.closeTarget(id) }()
	}))
	return true
}

func (h *Host) page(id string) *pageSurface {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pages[id]
}

// Open creates a page target for url and starts translating its events.
func (h *Host) Open(ctx context.Context, url string) (surface.Surface, error) {
	navURL := url
	if navURL == "" {
		navURL = "about:blank"
	}

	var targetID target.ID
	createCtx, createCancel := context.WithTimeout(h.browserCtx, createTimeout)
	defer createCancel()
	stop := context.AfterFunc(ctx, createCancel)
	defer stop()
	if err := chromedp.Run(createCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		targetID, err = target.CreateTarget("about:blank").Do(ctx)
		return err
	})); err != nil {
		return nil, fmt.Errorf("create target: %w", err)
	}

	tabCtx, cancel := chromedp.NewContext(h.browserCtx, chromedp.WithTargetID(targetID))
	p := newPageSurface(tabCtx, cancel, string(targetID))
	chromedp.ListenTarget(tabCtx, p.handle)
	if err := chromedp.Run(tabCtx, page.Enable(), network.Enable()); err != nil {
		cancel()
		_ = h.closeTarget(string(targetID))
		return nil, fmt.Errorf("attach target %s: %w", targetID, err)
	}

	h.mu.Lock()
	h.pages[p.id] = p
	h.mu.Unlock()

	// Navigate after the listeners are in place so the first load is seen.
	if err := p.Navigate(ctx, navURL); err != nil {
		slog.Warn("initial navigation failed", "content", p.id, "url", navURL, "err", err)
	}
	slog.Debug("page opened", "content", p.id, "url", navURL)
	return p, nil
}

// Dispose closes the page target and ends its event stream.
func (h *Host) Dispose(ctx context.Context, contentID string) error {
	h.mu.Lock()
	p, tracked := h.pages[contentID]
	delete(h.pages, contentID)
	h.mu.Unlock()

	if tracked {
		p.close()
	}
	if err := h.closeTarget(contentID); err != nil {
		if !tracked {
			return fmt.Errorf("content %s not found", contentID)
		}
		slog.Debug("close target CDP", "content", contentID, "err", err)
	}
	return nil
}

func (h *Host) closeTarget(id string) error {
	closeCtx, closeCancel := context.WithTimeout(h.browserCtx, closeTimeout)
	defer closeCancel()
	return target.CloseTarget(target.ID(id)).Do(cdp.WithExecutor(closeCtx, chromedp.FromContext(closeCtx).Browser))
}

// Close disposes every page and shuts the browser connection down.
func (h *Host) Close() {
	h.mu.Lock()
	pages := make([]*pageSurface, 0, len(h.pages))
	for id, p := range h.pages {
		pages = append(pages, p)
		delete(h.pages, id)
	}
	h.mu.Unlock()
	for _, p := range pages {
		p.close()
	}
	if h.stop != nil {
		h.stop()
	}
}
