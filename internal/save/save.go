// Package save persists battery-backed cartridge RAM next to the ROM as a
// text file holding one decimal byte value per line.
package save

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Suffix is appended to the ROM path to form the sidecar path.
const Suffix = ".sav"

// ErrMalformed is returned when a sidecar holds anything but byte values.
var ErrMalformed = errors.New("malformed save file")

// Path returns the sidecar path for romPath.
func Path(romPath string) string { return romPath + Suffix }

// Store reads and writes sidecar files.
type Store struct {
	log *slog.Logger
}

func NewStore(log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{log: log}
}

// Load returns the saved RAM for romPath. A missing sidecar yields
// found=false and no error.
func (s *Store) Load(romPath string) (blob []byte, found bool, err error) {
	path := Path(romPath)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		s.log.Info("no save file", "path", path)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", path, err)
	}
	blob, err = Decode(string(data))
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", path, err)
	}
	s.log.Info("loaded save RAM", "path", path, "bytes", len(blob))
	return blob, true, nil
}

// Save overwrites the sidecar for romPath with blob. The file is written to a
// temporary name and renamed into place.
func (s *Store) Save(romPath string, blob []byte) error {
	path := Path(romPath)
	if err := writeAtomic(path, []byte(Encode(blob))); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	s.log.Info("wrote save RAM", "path", path, "bytes", len(blob))
	return nil
}

// Encode formats blob as newline-separated decimal values.
func Encode(blob []byte) string {
	var sb strings.Builder
	sb.Grow(len(blob) * 4)
	for i, b := range blob {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(strconv.Itoa(int(b)))
	}
	return sb.String()
}

// Decode parses newline-separated decimal values in [0,255]. One trailing
// newline is accepted; empty interior lines are not.
func Decode(text string) ([]byte, error) {
	text = strings.TrimSuffix(text, "\n")
	text = strings.TrimSuffix(text, "\r")
	if text == "" {
		return []byte{}, nil
	}
	lines := strings.Split(text, "\n")
	blob := make([]byte, len(lines))
	for i, line := range lines {
		tok := strings.TrimSpace(line)
		v, err := strconv.Atoi(tok)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %q is not an integer", ErrMalformed, i+1, tok)
		}
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("%w: line %d: %d out of byte range", ErrMalformed, i+1, v)
		}
		blob[i] = byte(v)
	}
	return blob, nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
