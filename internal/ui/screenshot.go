package ui

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/FabianRolfMatthiasNoll/gbfront/internal/frame"
)

var now = time.Now

func (a *App) saveScreenshot() (string, error) {
	img := &image.RGBA{
		Pix:    a.s.Sink().RGBA(nil),
		Stride: 4 * frame.Width,
		Rect:   image.Rect(0, 0, frame.Width, frame.Height),
	}
	base := filepath.Base(a.s.ROMPath())
	base = strings.TrimSuffix(base, filepath.Ext(base))
	name := filepath.Join(a.cfg.ScreenshotDir, fmt.Sprintf("%s_%s.png", base, now().Format("20060102_150405")))

	f, err := os.Create(name)
	if err != nil {
		return "", err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return "", err
	}
	return name, f.Close()
}
