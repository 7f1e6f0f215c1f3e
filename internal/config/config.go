// Package config reads front-end settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/FabianRolfMatthiasNoll/gbfront/internal/logger"
)

const (
	DefaultTitle  = "gbfront"
	DefaultWidth  = 640
	DefaultHeight = 480
)

var ErrInvalid = errors.New("invalid configuration")

// Config holds everything the command needs besides the ROM path.
type Config struct {
	CorePath      string // libretro core; empty means search the usual places
	Title         string
	Width         int
	Height        int
	ScreenshotDir string
	LogLevel      string
	LogFormat     string
}

func Default() Config {
	return Config{
		Title:         DefaultTitle,
		Width:         DefaultWidth,
		Height:        DefaultHeight,
		ScreenshotDir: ".",
		LogLevel:      "info",
		LogFormat:     "text",
	}
}

func getEnvOrDefault(getenv func(string) string, key, def string) string {
	if val := getenv(key); val != "" {
		return val
	}
	return def
}

// FromEnv builds a Config from getenv, falling back to Default for unset
// keys. A nil getenv means os.Getenv. Every invalid key is reported.
func FromEnv(getenv func(string) string) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	c := Default()
	var problems []string

	c.CorePath = getenv("GBFRONT_CORE")
	c.Title = getEnvOrDefault(getenv, "GBFRONT_TITLE", c.Title)
	c.ScreenshotDir = getEnvOrDefault(getenv, "GBFRONT_SCREENSHOTS", c.ScreenshotDir)
	c.LogLevel = strings.ToLower(getEnvOrDefault(getenv, "LOG_LEVEL", c.LogLevel))
	c.LogFormat = strings.ToLower(getEnvOrDefault(getenv, "LOG_FORMAT", c.LogFormat))

	for _, dim := range []struct {
		key string
		dst *int
	}{
		{"GBFRONT_WIDTH", &c.Width},
		{"GBFRONT_HEIGHT", &c.Height},
	} {
		raw := getenv(dim.key)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %q is not an integer", dim.key, raw))
			continue
		}
		*dim.dst = n
	}

	problems = append(problems, Validate(&c)...)
	if len(problems) > 0 {
		return c, fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return c, nil
}

// Validate checks field ranges and returns one description per problem.
// An empty slice means the config is usable.
func Validate(c *Config) []string {
	var problems []string

	if c.Width <= 0 {
		problems = append(problems, fmt.Sprintf("GBFRONT_WIDTH: %d (valid: > 0)", c.Width))
	}
	if c.Height <= 0 {
		problems = append(problems, fmt.Sprintf("GBFRONT_HEIGHT: %d (valid: > 0)", c.Height))
	}
	if strings.TrimSpace(c.Title) == "" {
		problems = append(problems, "GBFRONT_TITLE: empty")
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		problems = append(problems, fmt.Sprintf("LOG_LEVEL: %q (valid: debug, info, warn, error)", c.LogLevel))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		problems = append(problems, fmt.Sprintf("LOG_FORMAT: %q (valid: \"text\", \"json\")", c.LogFormat))
	}

	return problems
}
