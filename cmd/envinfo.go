/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/fulmenhq/pkgsync/pkg/buildinfo"
	"github.com/fulmenhq/pkgsync/pkg/config"
	"github.com/fulmenhq/pkgsync/pkg/layout"
	"github.com/fulmenhq/pkgsync/pkg/patcher/butler"
	"github.com/fulmenhq/pkgsync/pkg/pkgname"
	"github.com/spf13/cobra"
)

// ANSI color codes
const (
	colorReset = "\033[0m"
	colorBlue  = "\033[34m"
	colorCyan  = "\033[36m"
	colorBold  = "\033[1m"
)

// colorize returns colored text if colors are enabled
func colorize(text, color string, useColor bool) string {
	if !useColor {
		return text
	}
	return color + text + colorReset
}

// EnvData represents the structured data for environment information.
type EnvData struct {
	System SystemInfo `json:"system"`
	Paths  PathInfo   `json:"paths"`
}

// SystemInfo holds system-related information.
type SystemInfo struct {
	OS             string    `json:"os"`
	Architecture   string    `json:"architecture"`
	GoVersion      string    `json:"goVersion"`
	NativePlatform string    `json:"nativePlatform"`
	NumCPU         int       `json:"numCPU"`
	Hostname       string    `json:"hostname"`
	Timestamp      time.Time `json:"timestamp"`
	Version        string    `json:"version"`
}

// PathInfo lists the directories and binaries pkgsync would use.
type PathInfo struct {
	Home       string `json:"home"`
	WritePath  string `json:"writePath"`
	PackageDir string `json:"packageDir"`
	TmpDir     string `json:"tmpDir"`
	Butler     string `json:"butler"`
	Downloader string `json:"downloader"`
}

func newEnvinfoCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "envinfo",
		Short: "Display environment and path information",
		Long: `Display the host platform as pkgsync negotiates it, together with the
directories and patcher binary resolved from configuration.`,
		Args: cobra.NoArgs,
		RunE: runEnvinfo,
	}
	cmd.Flags().Bool("json", false, "Output in JSON format")
	return cmd
}

func runEnvinfo(cmd *cobra.Command, _ []string) error {
	jsonFormat, _ := cmd.Flags().GetBool("json")
	noColor, _ := cmd.Flags().GetBool("no-color")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	envData := collectEnvironmentData(cfg)

	out := cmd.OutOrStdout()
	if jsonFormat {
		jsonData, err := json.MarshalIndent(envData, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to format JSON output: %v", err)
		}
		_, err = fmt.Fprintln(out, string(jsonData))
		return err
	}
	writeEnvText(out, envData, !noColor)
	return nil
}

func collectEnvironmentData(cfg *config.Config) EnvData {
	hostname, _ := os.Hostname()
	native, err := pkgname.HostPlatform()
	if err != nil {
		native = "unsupported"
	}
	home, _ := config.GetHome()
	binDir, _ := config.GetBinDir()
	butlerPath, err := butler.Locate(cfg.Patcher.ButlerPath, binDir)
	if err != nil {
		butlerPath = "not found"
	}
	local := layout.Local{WritePath: cfg.WritePath}

	return EnvData{
		System: SystemInfo{
			OS:             runtime.GOOS,
			Architecture:   runtime.GOARCH,
			GoVersion:      runtime.Version(),
			NativePlatform: native,
			NumCPU:         runtime.NumCPU(),
			Hostname:       hostname,
			Timestamp:      time.Now(),
			Version:        buildinfo.Version(),
		},
		Paths: PathInfo{
			Home:       home,
			WritePath:  cfg.WritePath,
			PackageDir: local.PackageDir(),
			TmpDir:     local.TmpDir(),
			Butler:     butlerPath,
			Downloader: cfg.Patcher.Downloader,
		},
	}
}

func writeEnvText(out io.Writer, env EnvData, useColor bool) {
	keyColor, resetColor := colorCyan, colorReset
	if !useColor {
		keyColor, resetColor = "", ""
	}
	row := func(key, value string) {
		_, _ = fmt.Fprintf(out, "%s%-16s%s | %s\n", keyColor, key, resetColor, value)
	}
	separator := colorize("==================================================", colorCyan, useColor)

	_, _ = fmt.Fprintln(out, colorize("System Information", colorBold+colorBlue, useColor))
	_, _ = fmt.Fprintln(out, separator)
	row("OS", env.System.OS)
	row("Architecture", env.System.Architecture)
	row("Native Platform", env.System.NativePlatform)
	row("Go Version", env.System.GoVersion)
	row("CPU Cores", fmt.Sprintf("%d", env.System.NumCPU))
	row("Hostname", env.System.Hostname)
	row("Timestamp", env.System.Timestamp.Format(time.RFC3339))
	row("pkgsync Version", env.System.Version)

	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprintln(out, colorize("Paths", colorBold+colorBlue, useColor))
	_, _ = fmt.Fprintln(out, separator)
	row("Home", env.Paths.Home)
	row("Write Path", env.Paths.WritePath)
	row("Package Dir", env.Paths.PackageDir)
	row("Tmp Dir", env.Paths.TmpDir)
	row("Butler", env.Paths.Butler)
	row("Downloader", env.Paths.Downloader)
}
