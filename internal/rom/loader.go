// Package rom loads Game Boy cartridge images from disk, including images
// packed inside zip, 7z, rar and gzip archives, and decodes their headers.
package rom

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// MaxSize is the largest image accepted (MBC5 tops out at 8 MiB).
const MaxSize = 8 * 1024 * 1024

var (
	ErrNoROMFile         = errors.New("no ROM file found in archive")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrFileTooLarge      = errors.New("file exceeds maximum size limit")
)

// DefaultExtensions are used when the engine does not advertise its own.
var DefaultExtensions = []string{".gb", ".gbc", ".sgb"}

var (
	magicZIP    = []byte{0x50, 0x4B, 0x03, 0x04}
	magicZIPEnd = []byte{0x50, 0x4B, 0x05, 0x06}
	magic7z     = []byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C}
	magicGzip   = []byte{0x1F, 0x8B}
	magicRAR    = []byte{0x52, 0x61, 0x72, 0x21}
)

type format int

const (
	formatUnknown format = iota
	formatRaw
	formatZIP
	format7z
	formatGzip
	formatRAR
)

// Image is a loaded cartridge.
type Image struct {
	Data []byte
	Name string // base name of the ROM, inside the archive if packed
}

// Archived reports whether the image was extracted from an archive whose
// path is archivePath.
func (img *Image) Archived(archivePath string) bool {
	return img.Name != filepath.Base(archivePath)
}

// Load reads the ROM at path. Archives are detected by magic bytes first and
// extension second; the first entry matching one of extensions is used.
// Plain files must carry one of extensions.
func Load(path string, extensions []string) (*Image, error) {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ROM: %w", err)
	}
	defer f.Close()

	header := make([]byte, 16)
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read ROM header: %w", err)
	}
	header = header[:n]

	switch detectFormat(header, path, extensions) {
	case formatRaw:
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("seek ROM: %w", err)
		}
		data, err := limitedRead(f)
		if err != nil {
			return nil, fmt.Errorf("read ROM: %w", err)
		}
		return &Image{Data: data, Name: filepath.Base(path)}, nil
	case formatZIP:
		return extractFromZIP(path, extensions)
	case format7z:
		return extractFrom7z(path, extensions)
	case formatGzip:
		return extractFromGzip(path, extensions)
	case formatRAR:
		return extractFromRAR(path, extensions)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
}

func detectFormat(header []byte, path string, extensions []string) format {
	switch {
	case bytes.HasPrefix(header, magicZIP), bytes.HasPrefix(header, magicZIPEnd):
		return formatZIP
	case bytes.HasPrefix(header, magicRAR):
		return formatRAR
	case bytes.HasPrefix(header, magic7z):
		return format7z
	case bytes.HasPrefix(header, magicGzip):
		return formatGzip
	}

	lower := strings.ToLower(path)
	switch filepath.Ext(lower) {
	case ".zip":
		return formatZIP
	case ".7z":
		return format7z
	case ".gz", ".tgz":
		return formatGzip
	case ".rar":
		return formatRAR
	}
	if isROMFile(lower, extensions) {
		return formatRaw
	}
	return formatUnknown
}

func isROMFile(name string, extensions []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range extensions {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

func limitedRead(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxSize {
		return nil, ErrFileTooLarge
	}
	return data, nil
}

// ParseExtensions turns a libretro style list ("gb|gbc|dmg") into dotted
// extensions.
func ParseExtensions(list string) []string {
	var out []string
	for _, ext := range strings.Split(list, "|") {
		ext = strings.TrimSpace(strings.ToLower(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	return out
}
