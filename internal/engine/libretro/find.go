package libretro

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

var ErrNoCore = errors.New("no libretro core found")

// DefaultCoreNames lists Game Boy cores in order of preference.
var DefaultCoreNames = []string{
	"gambatte_libretro",
	"sameboy_libretro",
	"gearboy_libretro",
	"mgba_libretro",
}

// LibraryExt is the shared library suffix for the running OS.
func LibraryExt() string {
	switch runtime.GOOS {
	case "windows":
		return ".dll"
	case "darwin":
		return ".dylib"
	}
	return ".so"
}

// SearchDirs returns the usual RetroArch core directories for this OS.
func SearchDirs() []string {
	var dirs []string
	home, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			dirs = append(dirs, filepath.Join(appData, "RetroArch", "cores"))
		}
	case "darwin":
		if home != "" {
			dirs = append(dirs, filepath.Join(home, "Library", "Application Support", "RetroArch", "cores"))
		}
	default:
		if home != "" {
			dirs = append(dirs,
				filepath.Join(home, ".config", "retroarch", "cores"),
				filepath.Join(home, ".var", "app", "org.libretro.RetroArch", "config", "retroarch", "cores"))
		}
		dirs = append(dirs,
			"/usr/lib/libretro",
			"/usr/lib/x86_64-linux-gnu/libretro",
			"/usr/lib/aarch64-linux-gnu/libretro",
			"/usr/local/lib/libretro")
	}
	return dirs
}

// FindCore returns the first existing dir/name+ext, trying names in order
// within each dir.
func FindCore(dirs, names []string, ext string) (string, error) {
	for _, dir := range dirs {
		for _, name := range names {
			p := filepath.Join(dir, name+ext)
			if fi, err := os.Stat(p); err == nil && fi.Mode().IsRegular() {
				return p, nil
			}
		}
	}
	return "", fmt.Errorf("%w (tried %s in %s)", ErrNoCore,
		strings.Join(names, ", "), strings.Join(dirs, ", "))
}
