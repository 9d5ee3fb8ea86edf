package render

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// idleEvent is the lifecycle event fired once no more than two network
// connections have been open for 500ms.
const idleEvent = "networkAlmostIdle"

const queryTextJS = `Array.from(document.querySelectorAll(%s)).map(function (el) { return (el.textContent || "").trim(); })`

// ChromeLauncher starts a dedicated Chrome process per session.
type ChromeLauncher struct{}

func NewChromeLauncher() *ChromeLauncher {
	return &ChromeLauncher{}
}

// Launch starts a browser bound to ctx: when ctx ends the process is killed
// even if Close is never reached.
func (l *ChromeLauncher) Launch(ctx context.Context, opts Options) (Session, error) {
	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts,
		chromedp.WindowSize(opts.Width, opts.Height),
		chromedp.Flag("headless", opts.Headless),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.DevTools {
		allocOpts = append(allocOpts, chromedp.Flag("auto-open-devtools-for-tabs", true))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	s := &chromeSession{
		ctx: tabCtx,
		cancel: func() {
			tabCancel()
			allocCancel()
		},
	}

	err := chromedp.Run(tabCtx,
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		page.SetLifecycleEventsEnabled(true),
	)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	return s, nil
}

type chromeSession struct {
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func (s *chromeSession) Navigate(ctx context.Context, url string) error {
	runCtx, stop := s.bind(ctx)
	defer stop()

	idle := make(chan struct{})
	var (
		mu        sync.Mutex
		mainFrame cdp.FrameID
		done      bool
	)
	chromedp.ListenTarget(runCtx, func(ev any) {
		e, ok := ev.(*page.EventLifecycleEvent)
		if !ok {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		switch {
		case e.Name == "init" && mainFrame == "":
			mainFrame = e.FrameID
		case e.Name == idleEvent && e.FrameID == mainFrame && !done:
			done = true
			close(idle)
		}
	})

	if err := chromedp.Run(runCtx, chromedp.Navigate(url)); err != nil {
		return s.err(ctx, fmt.Errorf("navigate %s: %w", url, err))
	}
	select {
	case <-idle:
		return nil
	case <-runCtx.Done():
		return s.err(ctx, runCtx.Err())
	}
}

func (s *chromeSession) QueryText(ctx context.Context, selector string) ([]string, error) {
	runCtx, stop := s.bind(ctx)
	defer stop()

	quoted, err := json.Marshal(selector)
	if err != nil {
		return nil, fmt.Errorf("quote selector: %w", err)
	}
	var texts []string
	if err := chromedp.Run(runCtx, chromedp.Evaluate(fmt.Sprintf(queryTextJS, quoted), &texts)); err != nil {
		return nil, s.err(ctx, fmt.Errorf("query %s: %w", selector, err))
	}
	return texts, nil
}

func (s *chromeSession) Close() error {
	s.closeOnce.Do(s.cancel)
	return nil
}

// bind derives a context that carries the tab and also ends with ctx.
func (s *chromeSession) bind(ctx context.Context) (context.Context, func()) {
	runCtx, cancel := context.WithCancel(s.ctx)
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

// err prefers the caller's context error so deadlines stay recognizable.
func (s *chromeSession) err(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if s.ctx.Err() != nil {
		return fmt.Errorf("browser session closed: %w", err)
	}
	return err
}
