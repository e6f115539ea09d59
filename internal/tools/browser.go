package tools

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// BrowserConfig controls the headless Chromium instance backing BrowserTool.
type BrowserConfig struct {
	Headless bool
}

// BrowserTool drives a real browser for pages that need JavaScript
// rendering — the cases web_fetch's plain HTTP GET can't handle. The
// underlying rod.Browser is lazily launched on first use and kept warm
// across calls.
type BrowserTool struct {
	mu       sync.Mutex
	headless bool
	browser  *rod.Browser
}

func NewBrowserTool(cfg BrowserConfig) *BrowserTool {
	return &BrowserTool{headless: cfg.Headless}
}

func (t *BrowserTool) Name() string { return "browser" }

func (t *BrowserTool) Description() string {
	return "Load a URL in a real browser and return the rendered page text. Use for pages that " +
		"require JavaScript to produce their content; prefer web_fetch for plain HTML/text pages."
}

func (t *BrowserTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"url": map[string]interface{}{"type": "string", "description": "page to load"},
			"wait_ms": map[string]interface{}{
				"type":        "integer",
				"description": "extra milliseconds to wait after load for client-side rendering (default 500, max 5000)",
			},
		},
		"required": []string{"url"},
	}
}

func (t *BrowserTool) ensureBrowser() (*rod.Browser, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.browser != nil {
		return t.browser, nil
	}
	u, err := launcher.New().Headless(t.headless).Launch()
	if err != nil {
		return nil, fmt.Errorf("browser: launch: %w", err)
	}
	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	t.browser = b
	return b, nil
}

func (t *BrowserTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	url, _ := args["url"].(string)
	if url == "" {
		return ErrorResult("browser requires \"url\"")
	}
	waitMs := 500
	if v, ok := args["wait_ms"].(float64); ok && v > 0 {
		waitMs = int(v)
		if waitMs > 5000 {
			waitMs = 5000
		}
	}

	b, err := t.ensureBrowser()
	if err != nil {
		return ErrorResult(err.Error()).WithError(err)
	}

	page, err := b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return ErrorResult(fmt.Sprintf("browser: open page: %v", err)).WithError(err)
	}
	defer page.Close()

	if err := page.Context(ctx).Navigate(url); err != nil {
		return ErrorResult(fmt.Sprintf("browser: navigate: %v", err)).WithError(err)
	}
	if err := page.WaitLoad(); err != nil {
		return ErrorResult(fmt.Sprintf("browser: wait load: %v", err)).WithError(err)
	}
	time.Sleep(time.Duration(waitMs) * time.Millisecond)

	text, err := page.Eval(`() => document.body ? document.body.innerText : ""`)
	if err != nil {
		return ErrorResult(fmt.Sprintf("browser: extract text: %v", err)).WithError(err)
	}

	content := truncateBytes([]byte(text.Value.Str()), defaultFetchMaxChars)
	return NewResult(content)
}

// Close releases the launched browser, if one was ever started.
func (t *BrowserTool) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.browser == nil {
		return nil
	}
	err := t.browser.Close()
	t.browser = nil
	return err
}
