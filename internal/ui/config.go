package ui

// Config contains window related settings.
type Config struct {
	Title         string // window title
	Width         int    // initial window width in pixels
	Height        int    // initial window height in pixels
	ScreenshotDir string // where F12 screenshots go
}

// Defaults fills missing fields with reasonable defaults.
func (c *Config) Defaults() {
	if c.Title == "" {
		c.Title = "gbfront"
	}
	if c.Width <= 0 {
		c.Width = 640
	}
	if c.Height <= 0 {
		c.Height = 480
	}
	if c.ScreenshotDir == "" {
		c.ScreenshotDir = "."
	}
}
