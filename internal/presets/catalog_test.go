package presets

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEmbeddedDefaults(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	p, ok := c.Profile(DefaultProfile)
	if !ok {
		t.Fatalf("default profile missing")
	}
	if p.MultiPV <= 0 || p.Threads <= 0 {
		t.Fatalf("default profile = %+v", p)
	}
	opt := p.Options()
	if opt.MultiPV != p.MultiPV || opt.Threads != p.Threads {
		t.Fatalf("options = %+v, profile = %+v", opt, p)
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	override := "profiles:\n  default:\n    multipv: 7\n    threads: 8\n  tournament:\n    multipv: 1\n    threads: 16\n"
	if err := os.WriteFile(filepath.Join(dir, "local.yaml"), []byte(override), 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}

	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p, _ := c.Profile("default"); p.MultiPV != 7 || p.Threads != 8 {
		t.Fatalf("override not applied: %+v", p)
	}
	if _, ok := c.Profile("tournament"); !ok {
		t.Fatalf("new override profile missing")
	}
	if _, ok := c.Profile("deep"); !ok {
		t.Fatalf("embedded profile lost after override")
	}
}

func TestDuplicateOverrideRejected(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.yaml", "b.yaml"} {
		body := "profiles:\n  clash:\n    multipv: 1\n    threads: 1\n"
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if _, err := New(dir); err == nil {
		t.Fatalf("duplicate profile across override files accepted")
	}
}

func TestUnknownProfile(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := c.Profile("no-such-profile"); ok {
		t.Fatalf("unknown profile resolved")
	}
}
