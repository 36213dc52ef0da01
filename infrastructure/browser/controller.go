package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"webagent/domain/entities"
	"webagent/domain/interfaces"

	"github.com/playwright-community/playwright-go"
	"github.com/sirupsen/logrus"
)

type browserController struct {
	pw          *playwright.Playwright
	browser     playwright.Browser
	page        playwright.Page
	context     playwright.BrowserContext
	annotator   *Annotator
	storagePath string
	logger      *logrus.Logger
}

const browserStateDir = ".webagent"
const browserStateFile = "state.json"

// NewBrowserController - creates new browser controller
func NewBrowserController(logger *logrus.Logger) (interfaces.Browser, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	stateDir := filepath.Join(homeDir, browserStateDir)
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	storagePath := filepath.Join(stateDir, browserStateFile)

	contextOptions := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  1024,
			Height: 768,
		},

		JavaScriptEnabled: playwright.Bool(true),

		IgnoreHttpsErrors: playwright.Bool(true),

		BypassCSP: playwright.Bool(true),

		UserAgent: playwright.String("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/116.0.5845.140 Safari/537.36"),
	}

	if _, err := os.Stat(storagePath); err == nil {

		data, err := os.ReadFile(storagePath)
		if err == nil {
			var storageState playwright.StorageState
			if err := json.Unmarshal(data, &storageState); err == nil {
				contextOptions.StorageState = storageState.ToOptionalStorageState()
			}
		}
	}

	headless := os.Getenv("BROWSER_HEADLESS") != "false"

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(headless),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--disable-gpu",
			"--disable-extensions",
			"--disable-notifications",
			"--disable-infobars",
			"--window-size=1024,768",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browserContext, err := browser.NewContext(contextOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	page, err := browserContext.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	page.OnDialog(func(dialog playwright.Dialog) {

		dialog.Accept()
	})

	return &browserController{
		pw:          pw,
		browser:     browser,
		page:        page,
		context:     browserContext,
		annotator:   NewAnnotator(logger),
		storagePath: storagePath,
		logger:      logger,
	}, nil
}

// Navigate - navigates to the specified URL
func (b *browserController) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := b.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   playwright.Float(30000),
	})
	if err != nil {
		return &entities.PageNotReadyError{Cause: err}
	}
	return nil
}

// Observe - runs one annotation pass against the current page
func (b *browserController) Observe(ctx context.Context, mode entities.ColorMode) (*entities.Annotation, error) {
	b.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: playwright.Float(3000),
	})

	return b.annotator.Annotate(ctx, b.page, mode)
}

// ClearMarkers - removes the markers of a previous Observe call
func (b *browserController) ClearMarkers(ctx context.Context, annotation *entities.Annotation) error {
	return b.annotator.ClearMarkers(ctx, annotation)
}

// Screenshot - captures the current page to a byte buffer
func (b *browserController) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := b.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(false),
	})
	if err != nil {
		return nil, &entities.PageNotReadyError{Cause: err}
	}
	return data, nil
}

// CurrentURL - returns the current page URL
func (b *browserController) CurrentURL() string {
	return b.page.URL()
}

// Title - returns the current page title
func (b *browserController) Title() string {
	title, _ := b.page.Title()
	return title
}

// SaveState - saves browser state to persistent storage
func (b *browserController) SaveState() error {
	if b.context == nil || b.storagePath == "" {
		return nil
	}

	_, err := b.context.StorageState(b.storagePath)
	if err != nil {

		errStr := err.Error()
		if strings.Contains(errStr, "closed") || strings.Contains(errStr, "target closed") {
			return nil
		}
		return fmt.Errorf("failed to save browser state: %w", err)
	}

	return nil
}

// Close - closes the browser and saves state
func (b *browserController) Close() error {
	var closeErr error

	if err := b.SaveState(); err != nil {

		errStr := err.Error()
		if !strings.Contains(errStr, "closed") && !strings.Contains(errStr, "target closed") {
			closeErr = err
		}
	}

	if b.context != nil {
		if err := b.context.Close(); err != nil {
			errStr := err.Error()

			if !strings.Contains(errStr, "closed") && !strings.Contains(errStr, "target closed") {
				if closeErr != nil {
					closeErr = fmt.Errorf("%v; failed to close context: %w", closeErr, err)
				} else {
					closeErr = fmt.Errorf("failed to close context: %w", err)
				}
			}
		}
		b.context = nil
	}

	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			errStr := err.Error()

			if !strings.Contains(errStr, "closed") && !strings.Contains(errStr, "target closed") {
				if closeErr != nil {
					closeErr = fmt.Errorf("%v; failed to close browser: %w", closeErr, err)
				} else {
					closeErr = fmt.Errorf("failed to close browser: %w", err)
				}
			}
		}
		b.browser = nil
	}

	if b.pw != nil {
		b.pw.Stop()
		b.pw = nil
	}

	return closeErr
}

// getString - extracts string value from map
func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
