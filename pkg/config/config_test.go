package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("PKGSYNC_HOME", home)
	t.Setenv("HOME", home)
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(home); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return home
}

func TestLoadDefaults(t *testing.T) {
	home := isolate(t)

	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.WritePath != filepath.Join(home, "data") {
		t.Errorf("WritePath = %q", cfg.WritePath)
	}
	if cfg.Cache.PackageInfoTTL != time.Hour {
		t.Errorf("PackageInfoTTL = %v, expected 1h", cfg.Cache.PackageInfoTTL)
	}
	if cfg.Cache.LatestTTL != 5*time.Minute {
		t.Errorf("LatestTTL = %v, expected 5m", cfg.Cache.LatestTTL)
	}
	if cfg.Patcher.Downloader != DownloaderButler {
		t.Errorf("Downloader = %q", cfg.Patcher.Downloader)
	}
	if !cfg.Legacy.Enabled || cfg.Legacy.TagSuffix != ":test" || cfg.Legacy.ArchiveExt != ".sdz" {
		t.Errorf("unexpected legacy defaults: %+v", cfg.Legacy)
	}
	if !strings.HasPrefix(cfg.Remote.Primary, "https://") {
		t.Errorf("Primary = %q", cfg.Remote.Primary)
	}
}

func TestLoadFileEnvAndFlags(t *testing.T) {
	home := isolate(t)
	file := filepath.Join(home, "custom.yaml")
	content := `
write_path: /from/file
cache:
  latest_ttl: 30s
fetch:
  max_parallel: 3
patcher:
  downloader: http
`
	if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PKGSYNC_CACHE_PACKAGE_INFO_TTL", "10m")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("write-path", "", "")
	flags.String("butler", "", "")
	if err := flags.Parse([]string{"--write-path", "/from/flag"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(file, flags)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.WritePath != "/from/flag" {
		t.Errorf("flag should win, got %q", cfg.WritePath)
	}
	if cfg.Cache.LatestTTL != 30*time.Second {
		t.Errorf("LatestTTL = %v", cfg.Cache.LatestTTL)
	}
	if cfg.Cache.PackageInfoTTL != 10*time.Minute {
		t.Errorf("env should override, got %v", cfg.Cache.PackageInfoTTL)
	}
	if cfg.Fetch.MaxParallel != 3 || cfg.Patcher.Downloader != DownloaderHTTP {
		t.Errorf("file values not applied: %+v %+v", cfg.Fetch, cfg.Patcher)
	}
	if cfg.Patcher.ButlerPath != "" {
		t.Errorf("unset flag must not override, got %q", cfg.Patcher.ButlerPath)
	}
}

func TestLoadSearchesWorkingDirectory(t *testing.T) {
	home := isolate(t)
	if err := os.WriteFile(filepath.Join(home, "pkgsync.yaml"), []byte("write_path: /found\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.WritePath != "/found" {
		t.Errorf("WritePath = %q", cfg.WritePath)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	isolate(t)
	_, err := Load("/does/not/exist.yaml", nil)
	if err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("error %v should wrap ErrInvalid", err)
	}
}

func TestValidate(t *testing.T) {
	valid := Config{
		WritePath: "/data",
		Remote:    RemoteConfig{Primary: "https://a/pkg", Fallback: "https://b/pkg"},
		Patcher:   PatcherConfig{Downloader: DownloaderButler},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	noFallback := valid
	noFallback.Remote.Fallback = ""
	if err := noFallback.Validate(); err != nil {
		t.Errorf("empty fallback should be allowed: %v", err)
	}

	broken := valid
	broken.WritePath = " "
	broken.Remote.Primary = "ftp://x"
	broken.Patcher.Downloader = "curl"
	broken.Fetch.MaxParallel = -1
	broken.Cache.LatestTTL = -time.Second
	err := broken.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"write_path", "remote.primary", "patcher.downloader", "max_parallel", "TTL"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestGetHome(t *testing.T) {
	t.Setenv("PKGSYNC_HOME", "/custom/home")
	home, err := GetHome()
	if err != nil || home != "/custom/home" {
		t.Errorf("GetHome() = %q, %v", home, err)
	}
	bin, err := GetBinDir()
	if err != nil || bin != filepath.Join("/custom/home", "bin") {
		t.Errorf("GetBinDir() = %q, %v", bin, err)
	}
}
