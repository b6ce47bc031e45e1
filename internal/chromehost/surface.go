package chromehost

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/pinchtab/surf/internal/surface"
)

const eventBuffer = 128

const faviconScript = `(() => {
  const links = Array.from(document.querySelectorAll('link[rel~="icon"], link[rel="shortcut icon"], link[rel="apple-touch-icon"]'));
  const urls = links.map(l => l.href).filter(Boolean);
  if (urls.length === 0 && location.protocol.startsWith('http')) {
    urls.push(new URL('/favicon.ico', location.href).href);
  }
  return urls;
})()`

// pageSurface is one Chrome page target seen through the surface
// interface. CDP events are translated in handle and queued on events.
type pageSurface struct {
	id  string
	ctx context.Context
	// cancel ends the chromedp context bound to the target.
	cancel context.CancelFunc

	mu      sync.Mutex
	events  chan surface.Event
	closed  bool
	title   string
	docs    map[network.RequestID]string
	latest  network.RequestID
	onProbe func()
}

func newPageSurface(ctx context.Context, cancel context.CancelFunc, id string) *pageSurface {
	p := &pageSurface{
		id:     id,
		ctx:    ctx,
		cancel: cancel,
		events: make(chan surface.Event, eventBuffer),
		docs:   make(map[network.RequestID]string),
	}
	p.onProbe = p.probeFavicon
	return p
}

func (p *pageSurface) ContentID() string            { return p.id }
func (p *pageSurface) Events() <-chan surface.Event { return p.events }

func (p *pageSurface) emit(ev surface.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.events <- ev:
	default:
		slog.Warn("surface event buffer full, dropping event", "content", p.id)
	}
}

func (p *pageSurface) close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.events)
	p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
	}
}

func (p *pageSurface) isMain(frame cdp.FrameID) bool {
	return string(frame) == p.id
}

// handle is the ListenTarget callback. It must not block.
func (p *pageSurface) handle(ev interface{}) {
	switch e := ev.(type) {
	case *page.EventFrameStartedLoading:
		if p.isMain(e.FrameID) {
			p.emit(surface.NavigationStarted{})
		}

	case *page.EventFrameNavigated:
		if e.Frame == nil {
			return
		}
		top := e.Frame.ParentID == ""
		if top && (e.Frame.UnreachableURL != "" || strings.HasPrefix(e.Frame.URL, "chrome-error://")) {
			// error page for a failed load; the tab keeps its address
			return
		}
		p.emit(surface.NavigationCommitted{URL: e.Frame.URL + e.Frame.URLFragment, TopLevel: top})

	case *page.EventNavigatedWithinDocument:
		p.emit(surface.InPageNavigated{URL: e.URL, TopLevel: p.isMain(e.FrameID)})

	case *page.EventFrameStoppedLoading:
		if p.isMain(e.FrameID) {
			p.emit(surface.NavigationStopped{})
		}

	case *page.EventLoadEventFired:
		p.emit(surface.NavigationFinished{})
		if p.onProbe != nil {
			go p.onProbe()
		}

	case *network.EventRequestWillBeSent:
		if e.Type != network.ResourceTypeDocument || !p.isMain(e.FrameID) || e.Request == nil {
			return
		}
		p.mu.Lock()
		p.docs[e.RequestID] = e.Request.URL
		p.latest = e.RequestID
		p.mu.Unlock()

	case *network.EventLoadingFinished:
		p.mu.Lock()
		delete(p.docs, e.RequestID)
		p.mu.Unlock()

	case *network.EventLoadingFailed:
		if e.Type != network.ResourceTypeDocument {
			return
		}
		p.mu.Lock()
		url, ok := p.docs[e.RequestID]
		latest := e.RequestID == p.latest
		delete(p.docs, e.RequestID)
		p.mu.Unlock()
		if !ok {
			return
		}
		failure := classifyFailure(url, e.ErrorText, e.Canceled, latest)
		p.emit(failure)
		if !failure.Transient() {
			p.emit(surface.NavigationFailed{})
		}
	}
}

// setTitle is fed from the browser-level target info stream.
func (p *pageSurface) setTitle(title string) {
	p.mu.Lock()
	changed := title != p.title
	p.title = title
	p.mu.Unlock()
	if changed {
		p.emit(surface.TitleUpdated{Title: title})
	}
}

func (p *pageSurface) probeFavicon() {
	var urls []string
	if err := chromedp.Run(p.ctx, chromedp.Evaluate(faviconScript, &urls)); err != nil {
		slog.Debug("favicon probe", "content", p.id, "err", err)
		return
	}
	if len(urls) > 0 {
		p.emit(surface.FaviconUpdated{URLs: urls})
	}
}

func (p *pageSurface) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		params := map[string]any{"url": url}
		return chromedp.FromContext(ctx).Target.Execute(ctx, page.CommandNavigate, params, nil)
	}))
}

func (p *pageSurface) Reload(ctx context.Context) error {
	return p.run(ctx, page.Reload())
}

func (p *pageSurface) GoBack(ctx context.Context) error {
	return p.historyStep(ctx, -1)
}

func (p *pageSurface) GoForward(ctx context.Context) error {
	return p.historyStep(ctx, 1)
}

func (p *pageSurface) historyStep(ctx context.Context, delta int64) error {
	return p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		cur, entries, err := page.GetNavigationHistory().Do(ctx)
		if err != nil {
			return err
		}
		next := cur + delta
		if next < 0 || next >= int64(len(entries)) {
			return nil
		}
		return page.NavigateToHistoryEntry(entries[next].ID).Do(ctx)
	}))
}

// run executes actions on the page target, bounded by the caller's ctx.
func (p *pageSurface) run(ctx context.Context, actions ...chromedp.Action) error {
	if p.ctx == nil {
		return fmt.Errorf("content %s: not attached", p.id)
	}
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	if err := chromedp.Run(runCtx, actions...); err != nil {
		return fmt.Errorf("content %s: %w", p.id, err)
	}
	return nil
}
