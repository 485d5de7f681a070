package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/go-echarts/go-echarts/v2/charts"
	"go.uber.org/zap"

	"github.com/areino/taegis-detection-analysis/internal/config"
)

// Artifact describes what Render actually wrote to disk.
type Artifact struct {
	Path string
	// Fallback is set when the raster backend was unavailable and the
	// interactive HTML artifact was written instead.
	Fallback bool
}

// Render writes the diagram to cfg-resolved dimensions at outputPath. A
// raster (PNG) export through headless Chrome is attempted first; if no
// usable Chrome is present, the interactive HTML artifact is written to the
// output path with its extension swapped to .html. The fallback is reported,
// not raised: a missing rendering backend never fails the run.
func Render(ctx context.Context, chart *charts.Sankey, outputPath string, cfg config.RenderConfig, logger *zap.Logger) (Artifact, error) {
	log := logger.Named("render")

	tmpDir, err := os.MkdirTemp("", "taegis-sankey-*")
	if err != nil {
		return Artifact{}, fmt.Errorf("failed to create temp dir for diagram: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	htmlPath := filepath.Join(tmpDir, "sankey.html")
	f, err := os.Create(htmlPath)
	if err != nil {
		return Artifact{}, fmt.Errorf("failed to create diagram HTML: %w", err)
	}
	if err := chart.Render(f); err != nil {
		f.Close()
		return Artifact{}, fmt.Errorf("failed to render diagram HTML: %w", err)
	}
	if err := f.Close(); err != nil {
		return Artifact{}, fmt.Errorf("failed to flush diagram HTML: %w", err)
	}

	if err := snapshotPNG(ctx, htmlPath, outputPath, cfg); err != nil {
		log.Info("Raster export unavailable, falling back to HTML artifact.", zap.Error(err))
		fallbackPath := replaceExt(outputPath, ".html")
		if copyErr := copyFile(htmlPath, fallbackPath); copyErr != nil {
			return Artifact{}, fmt.Errorf("failed to write fallback HTML artifact: %w", copyErr)
		}
		return Artifact{Path: fallbackPath, Fallback: true}, nil
	}

	log.Debug("Raster export complete.", zap.String("path", outputPath))
	return Artifact{Path: outputPath}, nil
}

// snapshotPNG loads the rendered HTML in headless Chrome and screenshots the
// full page. Any failure (most commonly: no Chrome binary on the host) is
// returned for the caller to recover from.
func snapshotPNG(ctx context.Context, htmlPath, outputPath string, cfg config.RenderConfig) error {
	timeout := time.Duration(cfg.SnapshotTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-background-networking", true),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	abs, err := filepath.Abs(htmlPath)
	if err != nil {
		return fmt.Errorf("failed to resolve diagram HTML path: %w", err)
	}

	var png []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(cfg.Width), int64(cfg.Height)),
		chromedp.Navigate("file://" + abs),
		chromedp.WaitReady("canvas", chromedp.ByQuery),
		// Give the chart animation a beat to settle before capturing.
		chromedp.Sleep(time.Second),
		chromedp.FullScreenshot(&png, 100),
	}
	if err := chromedp.Run(browserCtx, tasks); err != nil {
		return fmt.Errorf("headless chrome snapshot failed: %w", err)
	}

	if err := os.WriteFile(outputPath, png, 0o644); err != nil {
		return fmt.Errorf("failed to write PNG artifact: %w", err)
	}
	return nil
}

func replaceExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
