package capture

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/chromedp/chromedp"
)

// The wall runs on a kiosk display in the hallway; the snapshot lets you
// check what it is actually showing from your phone (/preview.png) without
// walking over. Captured on a cron schedule when enabled.

// Defaults match the portrait kiosk panel.
const (
	DefaultWidth   = 1080
	DefaultHeight  = 1920
	DefaultTimeout = 30 * time.Second
)

// Options parameterizes one headless-Chromium snapshot.
type Options struct {
	// URL of the wall UI, e.g. "http://127.0.0.1:8080/".
	URL string

	// OutputPath is where the PNG lands, e.g. "/var/lib/familywall/preview.png".
	OutputPath string

	// Viewport size; zero means the kiosk defaults.
	Width  int
	Height int

	// WaitSelector, when set, delays the screenshot until the selector is
	// visible (the UI flags itself ready via [data-ready="true"]).
	WaitSelector string

	Timeout time.Duration
}

// SnapshotPNG navigates headless Chromium to the wall UI and writes a PNG
// screenshot of it.
func SnapshotPNG(parentCtx context.Context, opts Options) error {
	if opts.URL == "" {
		return fmt.Errorf("capture: URL is required")
	}
	if opts.OutputPath == "" {
		return fmt.Errorf("capture: OutputPath is required")
	}
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()
	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(opts.URL),
	}
	if opts.WaitSelector != "" {
		tasks = append(tasks, chromedp.WaitVisible(opts.WaitSelector, chromedp.ByQuery))
	}
	// Let the last paints settle; the grid animates in.
	tasks = append(tasks,
		chromedp.Sleep(500*time.Millisecond),
	)

	var png []byte
	tasks = append(tasks, chromedp.FullScreenshot(&png, 100))

	if err := chromedp.Run(ctx, tasks); err != nil {
		return fmt.Errorf("capture: chromedp run failed: %w", err)
	}

	if err := os.WriteFile(opts.OutputPath, png, 0o644); err != nil {
		return fmt.Errorf("capture: write PNG: %w", err)
	}
	return nil
}
