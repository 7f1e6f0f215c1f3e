package libretro

import (
	"archive/zip"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestOpenArchiveWithFullpathCore(t *testing.T) {
	c := newTestCore()
	c.info = SystemInfo{Name: "Gambatte", Version: "v0.5.0", Extensions: []string{".gb", ".gbc"}, NeedFullpath: true}

	want := SystemInfo{Name: "Gambatte", Version: "v0.5.0", Extensions: []string{".gb", ".gbc"}, NeedFullpath: true}
	if got := c.Info(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Info() = %+v, want %+v", got, want)
	}

	path := filepath.Join(t.TempDir(), "tetris.zip")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	w, err := zw.Create("tetris.gb")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(make([]byte, 0x8000)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	err = c.Open(path)
	if err == nil || !strings.Contains(err.Error(), "needs a plain ROM file") {
		t.Fatalf("err = %v, want archive rejection", err)
	}
	if c.loaded {
		t.Fatal("core marked loaded")
	}
}
