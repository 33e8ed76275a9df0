package cmd

import (
	"github.com/spf13/cobra"
)

func newDownloadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "download NAME...",
		Short: "Update packages to their target version",
		Long: `Download brings each named package to its target version by fetching and
applying the patch chain from the installed version.

NAME is user/repo[@channel][:version][#platform]. Without :version the latest
build of the channel is installed; with it the package is pinned to that build.
Packages are processed in order and the command stops at the first failure.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runDownload,
	}
}

func runDownload(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd, true)
	if err != nil {
		return err
	}
	defer s.close()
	return runEach(cmd.Context(), args, s.engine.Download)
}

func newMetadataCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "metadata NAME...",
		Short: "Refresh cached package metadata without downloading patches",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runMetadata,
	}
}

func runMetadata(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd, false)
	if err != nil {
		return err
	}
	defer s.close()
	return runEach(cmd.Context(), args, s.engine.DownloadMetadata)
}
