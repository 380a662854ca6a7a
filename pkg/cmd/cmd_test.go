package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/agentpkg/relic/pkg/config"
	"github.com/agentpkg/relic/pkg/git/gittest"
)

const pkgfileRecipe = "pkgname=pkgfile\npkgver=21\npkgrel=1\narch=(x86_64)\nlicense=(MIT)\ndepends=(libarchive curl)\n"

type testEnv struct {
	base      string
	configDir string
	dataDir   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gittest.RequireGit(t)

	base := gittest.Mirror(t, map[string]gittest.Branches{
		"packages": {
			"packages/pkgfile": {"trunk/PKGBUILD": pkgfileRecipe},
			"packages/linux":   {"trunk/PKGBUILD": "pkgbase=linux\npkgver=5.4.14.arch1\npkgrel=1\n"},
		},
		"community": {
			"packages/acme": {"trunk/PKGBUILD": "pkgname=acme\npkgver=1.0\npkgrel=1\narch=(any)\n"},
		},
	})

	dir := t.TempDir()
	return &testEnv{
		base:      base,
		configDir: filepath.Join(dir, "config"),
		dataDir:   filepath.Join(dir, "data"),
	}
}

// run executes the root command with the environment's directories and
// mirror, returning stdout.
func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	full := append([]string{
		"-q",
		"--config-dir", e.configDir,
		"--data-dir", e.dataDir,
		"--base-url", e.base,
	}, args...)
	return execute(t, full...)
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	for _, name := range []string{"version", "v", "ver"} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			out, err := execute(t, "-q", "--config-dir", dir, "--data-dir", dir, name)
			if err != nil {
				t.Fatalf("%s error: %v", name, err)
			}
			want := fmt.Sprintf("relic %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
			if out != want {
				t.Errorf("%s output = %q, want %q", name, out, want)
			}
		})
	}
}

func TestFind(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "find", "pkgfile", "acme")
	if err != nil {
		t.Fatalf("find error: %v", err)
	}
	if want := "pkgfile: packages\nacme: community\n"; out != want {
		t.Errorf("find output = %q, want %q", out, want)
	}

	if _, err := env.run(t, "find", "foobar"); err == nil {
		t.Error("find foobar: expected error, got nil")
	}

	out, err = env.run(t, "find", "community/acme")
	if err != nil {
		t.Fatalf("find community/acme error: %v", err)
	}
	if want := "acme: community\n"; out != want {
		t.Errorf("find output = %q, want %q", out, want)
	}
	if _, err := env.run(t, "find", "packages/acme"); err == nil {
		t.Error("find packages/acme: expected error, got nil")
	}
	if _, err := env.run(t, "find"); err == nil {
		t.Error("find without args: expected error, got nil")
	}
}

func TestFetch(t *testing.T) {
	env := newTestEnv(t)

	tests := map[string]struct {
		pkg     string
		useDest bool
	}{
		"default destination":  {pkg: "pkgfile"},
		"explicit destination": {pkg: "acme", useDest: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			args := []string{"fetch", tc.pkg}
			wantDir := filepath.Join(env.dataDir, "abs", tc.pkg)
			if tc.useDest {
				wantDir = t.TempDir()
				args = append(args, "--dest", wantDir)
			}

			out, err := env.run(t, args...)
			if err != nil {
				t.Fatalf("fetch error: %v", err)
			}
			if out != wantDir+"\n" {
				t.Errorf("fetch output = %q, want %q", out, wantDir+"\n")
			}
			if _, err := os.Stat(filepath.Join(wantDir, "PKGBUILD")); err != nil {
				t.Errorf("PKGBUILD not fetched: %v", err)
			}

			lf, err := config.LoadLockFile(filepath.Join(env.dataDir, config.LockFileName))
			if err != nil {
				t.Fatalf("LoadLockFile() error: %v", err)
			}
			entries := lf.Find(tc.pkg)
			if len(entries) != 1 {
				t.Fatalf("lock entries for %s = %d, want 1", tc.pkg, len(entries))
			}
			e := entries[0]
			if e.Destination != wantDir || e.Branch != "packages/"+tc.pkg || e.Commit == "" || !strings.HasPrefix(e.Integrity, "sha256:") {
				t.Errorf("lock entry = %+v", e)
			}
		})
	}
}

func TestFetchRecordsHead(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.run(t, "fetch", "pkgfile"); err != nil {
		t.Fatalf("fetch error: %v", err)
	}
	// fetching again keeps a single entry
	if _, err := env.run(t, "fetch", "pkgfile"); err != nil {
		t.Fatalf("second fetch error: %v", err)
	}

	lf, err := config.LoadLockFile(filepath.Join(env.dataDir, config.LockFileName))
	if err != nil {
		t.Fatalf("LoadLockFile() error: %v", err)
	}
	want := gittest.HeadOf(t, filepath.Join(env.base, "packages.git"), "packages/pkgfile")
	if len(lf.Packages) != 1 || lf.Packages[0].Commit != want {
		t.Errorf("lock packages = %+v, want one entry at %s", lf.Packages, want)
	}
}

func TestFetchUnknownPackage(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.run(t, "fetch", "foobar"); err == nil {
		t.Fatal("fetch foobar: expected error, got nil")
	}
	if _, err := os.Stat(filepath.Join(env.dataDir, config.LockFileName)); !os.IsNotExist(err) {
		t.Errorf("lock file written after failed fetch: %v", err)
	}
}

func TestPkgver(t *testing.T) {
	env := newTestEnv(t)

	tests := map[string]struct {
		args []string
		want string
	}{
		"defaults to linux": {args: []string{"pkgver"}, want: "5.4.14\n"},
		"named package":     {args: []string{"pkgver", "acme"}, want: "1.0\n"},
		"pinned package":    {args: []string{"pkgver", "community/acme"}, want: "1.0\n"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			out, err := env.run(t, tc.args...)
			if err != nil {
				t.Fatalf("pkgver error: %v", err)
			}
			if out != tc.want {
				t.Errorf("pkgver output = %q, want %q", out, tc.want)
			}
		})
	}
}

func TestInfo(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "info", "pkgfile")
	if err != nil {
		t.Fatalf("info error: %v", err)
	}

	for _, line := range []string{
		fmt.Sprintf("%-16s: %s", "Repository", "packages"),
		fmt.Sprintf("%-16s: %s", "Name", "pkgfile"),
		fmt.Sprintf("%-16s: %s", "Version", "21-1"),
		fmt.Sprintf("%-16s: %s", "Licenses", "MIT"),
		fmt.Sprintf("%-16s: %s", "Depends On", "libarchive  curl"),
		fmt.Sprintf("%-16s: %s", "Groups", "None"),
	} {
		if !strings.Contains(out, line+"\n") {
			t.Errorf("info output missing %q:\n%s", line, out)
		}
	}
}

func TestConfigSaveAndShow(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "config", "save")
	if err != nil {
		t.Fatalf("config save error: %v", err)
	}
	path := filepath.Join(env.configDir, config.ConfigFileName)
	if out != "Saved "+path+"\n" {
		t.Errorf("config save output = %q", out)
	}

	cfg, err := config.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	if cfg.BaseURL != env.base {
		t.Errorf("saved BaseURL = %q, want %q", cfg.BaseURL, env.base)
	}

	// without --base-url the saved mirror is picked up from relic.yaml
	out, err = execute(t, "-q", "--config-dir", env.configDir, "--data-dir", env.dataDir, "config", "show")
	if err != nil {
		t.Fatalf("config show error: %v", err)
	}
	for _, want := range []string{
		"configFile: " + path,
		"url: " + env.base + "/packages.git",
		"url: " + env.base + "/community.git",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("config show output missing %q:\n%s", want, out)
		}
	}
}

func TestConfigShowUnknownRepo(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("RELIC_REPOS", "extra")
	if _, err := execute(t, "-q", "--config-dir", dir, "--data-dir", dir, "config", "show"); err == nil {
		t.Fatal("expected error for unknown repo, got nil")
	}
}

func TestRemove(t *testing.T) {
	tests := map[string]struct {
		args       []string
		wantConfig bool
		wantData   bool
		wantErr    bool
	}{
		"data only":      {args: []string{"remove", "data"}, wantConfig: true},
		"config only":    {args: []string{"rm", "config"}, wantData: true},
		"both by name":   {args: []string{"remove", "config", "data"}},
		"all":            {args: []string{"remove", "--all"}},
		"unknown target": {args: []string{"remove", "cache"}, wantConfig: true, wantData: true, wantErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			configDir := filepath.Join(dir, "config")
			dataDir := filepath.Join(dir, "data")
			for _, d := range []string{configDir, filepath.Join(dataDir, "abs", "pkgfile")} {
				if err := os.MkdirAll(d, 0o755); err != nil {
					t.Fatalf("creating %s: %v", d, err)
				}
			}

			_, err := execute(t, append([]string{"-q", "--config-dir", configDir, "--data-dir", dataDir}, tc.args...)...)
			if (err != nil) != tc.wantErr {
				t.Fatalf("remove error = %v, wantErr = %v", err, tc.wantErr)
			}

			if got := exists(t, configDir); got != tc.wantConfig {
				t.Errorf("config dir exists = %v, want %v", got, tc.wantConfig)
			}
			if got := exists(t, dataDir); got != tc.wantData {
				t.Errorf("data dir exists = %v, want %v", got, tc.wantData)
			}
		})
	}
}

func exists(t *testing.T, path string) bool {
	t.Helper()
	_, err := os.Stat(path)
	if err == nil {
		return true
	}
	if !os.IsNotExist(err) {
		t.Fatalf("stat %s: %v", path, err)
	}
	return false
}
