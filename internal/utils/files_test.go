package utils_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/KaramelBytes/chainpulse/internal/utils"
)

func TestUniquePath(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "tx.dashboard.md")
	if got := utils.UniquePath(p); got != p {
		t.Fatalf("free path changed: %s", got)
	}
	if err := utils.SafeWriteFile(p, []byte("x")); err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(dir, "tx.dashboard__2.md")
	if got := utils.UniquePath(p); got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
	if err := os.WriteFile(want, []byte("y"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := utils.UniquePath(p); got != filepath.Join(dir, "tx.dashboard__3.md") {
		t.Fatalf("third candidate = %s", got)
	}
}

func TestPrettyJSONAndSafeWrite(t *testing.T) {
	b, err := utils.PrettyJSON(map[string]int{"a": 1})
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "out.json")
	if err := utils.SafeWriteFile(path, b); err != nil {
		t.Fatal(err)
	}
	got, _ := os.ReadFile(path)
	if string(got) != "{\n  \"a\": 1\n}" {
		t.Fatalf("content = %q", got)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatal("temp file left behind")
	}
}
