// Package browser renders pages in a headless Chrome driven by rod.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"ChannelPublisher/internal/config"
	"ChannelPublisher/internal/domain"
	"ChannelPublisher/internal/logging"
	"ChannelPublisher/internal/ports"
)

// Interstitial buttons worth clicking before the second shot, matched
// case-insensitively against the whole button label.
var dismissLabels = []string{
	"accept", "accept all", "agree", "i agree", "got it", "ok", "close", "skip", "not now", "no thanks", "continue",
	"同意", "接受", "我知道了", "关闭", "跳过", "稍后",
	"akzeptieren", "alle akzeptieren", "zustimmen", "schließen",
	"accepter", "tout accepter", "fermer", "aceptar", "cerrar", "accetta", "chiudi",
	"同意する", "閉じる", "확인", "닫기",
}

// Main-content candidates for generic pages, most specific first.
var contentSelectors = []string{
	"main article", "article", "main", "[role=main]", "#content", ".content", "#main", ".main", "section",
}

// Anchors for a repository README.
var readmeSelectors = []string{
	"#readme", "article.markdown-body", "[data-testid=readme]", ".readme",
}

// Renderer implements ports.Renderer with a fresh browser per call.
type Renderer struct {
	cfg    config.CaptureConfig
	logger *zap.Logger
}

var _ ports.Renderer = (*Renderer)(nil)

// NewRenderer builds a rod-backed renderer.
func NewRenderer(cfg config.CaptureConfig, logger *zap.Logger) *Renderer {
	return &Renderer{cfg: cfg, logger: logging.OrNop(logger)}
}

// Render opens url in an isolated session and returns two screenshots: the
// first viewport, then the page scrolled to its README (repositories) or
// main content (everything else). The browser process is always torn down.
func (r *Renderer) Render(ctx context.Context, url string, kind domain.LinkKind) (shots [][]byte, err error) {
	l := launcher.New().Headless(true).Leakless(true).Set("disable-gpu").Set("no-sandbox")
	if r.cfg.BrowserBin != "" {
		l = l.Bin(r.cfg.BrowserBin)
	}
	l = l.Context(ctx)
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	defer func() {
		l.Kill()
		l.Cleanup()
	}()

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	defer func() {
		if cerr := b.Close(); cerr != nil {
			r.logger.Warn("close browser", zap.Error(cerr))
		}
	}()

	incognito, err := b.Incognito()
	if err != nil {
		return nil, fmt.Errorf("incognito context: %w", err)
	}
	page, err := incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             r.cfg.ViewportWidth,
		Height:            r.cfg.ViewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		r.logger.Debug("set viewport", zap.Error(err))
	}

	if err := r.navigate(page, url); err != nil {
		return nil, err
	}

	first, err := screenshot(page)
	if err != nil {
		return nil, fmt.Errorf("first screenshot: %w", err)
	}

	if kind == domain.LinkRepository {
		scrollToFirst(page, readmeSelectors)
	} else {
		r.dismissInterstitials(page)
		if !scrollToFirst(page, contentSelectors) {
			_, _ = page.Eval(`() => window.scrollBy(0, window.innerHeight * 0.8)`)
		}
	}
	time.Sleep(300 * time.Millisecond)

	second, err := screenshot(page)
	if err != nil {
		return nil, fmt.Errorf("second screenshot: %w", err)
	}
	return [][]byte{first, second}, nil
}

func (r *Renderer) navigate(page *rod.Page, url string) error {
	nav := page.Timeout(r.cfg.NavigateTimeout)
	if err := nav.Navigate(url); err != nil {
		return domain.Timeout("navigate", fmt.Errorf("navigate %s: %w", url, err))
	}
	if err := nav.WaitLoad(); err != nil {
		return domain.Timeout("load", fmt.Errorf("load %s: %w", url, err))
	}
	// Network-idle is a heuristic; a chatty page just gets shot as is.
	if err := page.Timeout(r.cfg.IdleTimeout).WaitIdle(r.cfg.IdleTimeout); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		r.logger.Debug("wait idle", zap.String("url", url), zap.Error(err))
	}
	return nil
}

func (r *Renderer) dismissInterstitials(page *rod.Page) {
	pattern := "/^\\s*(" + strings.Join(dismissLabels, "|") + ")\\s*$/i"
	for _, selector := range []string{"button", "[role=button]", "a"} {
		found, el, err := page.HasR(selector, pattern)
		if err != nil || !found {
			continue
		}
		if err := el.Timeout(2*time.Second).Click(proto.InputMouseButtonLeft, 1); err != nil {
			r.logger.Debug("dismiss interstitial", zap.String("selector", selector), zap.Error(err))
			continue
		}
		r.logger.Debug("interstitial dismissed", zap.String("selector", selector))
		return
	}
}

func scrollToFirst(page *rod.Page, selectors []string) bool {
	for _, selector := range selectors {
		found, el, err := page.Has(selector)
		if err != nil || !found {
			continue
		}
		if err := el.ScrollIntoView(); err == nil {
			return true
		}
	}
	return false
}

func screenshot(page *rod.Page) ([]byte, error) {
	return page.Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
}
