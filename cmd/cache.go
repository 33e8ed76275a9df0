package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/dustin/go-humanize"
	"github.com/fulmenhq/pkgsync/pkg/layout"
	"github.com/fulmenhq/pkgsync/pkg/legacy"
	"github.com/fulmenhq/pkgsync/pkg/logger"
	"github.com/spf13/cobra"
)

func newCacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and clean the local package cache",
	}

	clean := &cobra.Command{
		Use:   "clean",
		Short: "Remove cached metadata and patches",
		Long: `Clean removes cached metadata and downloaded patches below the package
directory. Installed-version records, the system marker and the touched
registry list are never removed.

--match restricts removal to cache-relative paths matching a glob, for example
'spring/bar/**' or '**/patch/*'.`,
		Args: cobra.NoArgs,
		RunE: runCacheClean,
	}
	clean.Flags().String("match", "", "Only remove files whose cache-relative path matches this glob")
	clean.Flags().Bool("dry-run", false, "List files that would be removed without removing them")

	touched := &cobra.Command{
		Use:   "touched",
		Short: "List legacy registry files written by pkgsync",
		Args:  cobra.NoArgs,
		RunE:  runCacheTouched,
	}
	touched.Flags().Bool("clear", false, "Forget every recorded registry file")

	cmd.AddCommand(clean, touched)
	return cmd
}

func runCacheClean(cmd *cobra.Command, _ []string) error {
	match, _ := cmd.Flags().GetString("match")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	if match != "" && !doublestar.ValidatePattern(match) {
		return fmt.Errorf("invalid --match pattern %q", match)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	local := layout.Local{WritePath: cfg.WritePath}

	removed, bytes, err := cleanCache(local.PackageDir(), match, dryRun, func(rel string) {
		if dryRun {
			fmt.Fprintln(cmd.OutOrStdout(), rel)
		}
	})
	if err != nil {
		return err
	}

	verb := "Removed"
	if dryRun {
		verb = "Would remove"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %d file(s), %s\n", verb, removed, humanize.IBytes(uint64(bytes)))
	return nil
}

// cleanCache removes cached files under root, skipping state files and, when
// match is set, files whose slash-separated relative path does not match.
// Empty directories left behind are pruned.
func cleanCache(root, match string, dryRun bool, visit func(rel string)) (int, int64, error) {
	var (
		count int
		total int64
		dirs  []string
	)
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p == root {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() {
			if p != root {
				dirs = append(dirs, p)
			}
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if layout.IsStateFile(rel) {
			return nil
		}
		if match != "" {
			ok, err := doublestar.Match(match, rel)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		visit(rel)
		count++
		total += info.Size()
		if dryRun {
			return nil
		}
		return os.Remove(p)
	})
	if err != nil {
		return count, total, err
	}

	if !dryRun {
		// Deepest first; non-empty directories fail to remove and are kept.
		for i := len(dirs) - 1; i >= 0; i-- {
			_ = os.Remove(dirs[i])
		}
	}
	logger.Debug("cache cleaned", logger.Int("files", count), logger.Int64("bytes", total), logger.Bool("dry_run", dryRun))
	return count, total, nil
}

func runCacheTouched(cmd *cobra.Command, _ []string) error {
	clearAll, _ := cmd.Flags().GetBool("clear")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	touched := legacy.NewTouched(layout.Local{WritePath: cfg.WritePath}.TouchedRegistry())

	if clearAll {
		if err := touched.Clear(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Touched registry cleared")
		return nil
	}

	files := touched.List()
	if len(files) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No legacy registry files recorded")
		return nil
	}
	for _, f := range files {
		fmt.Fprintln(cmd.OutOrStdout(), f)
	}
	return nil
}
