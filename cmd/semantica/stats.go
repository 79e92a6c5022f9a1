package main

import (
	"github.com/spf13/cobra"

	"github.com/hyperjump/semantica/internal/cli"
	"github.com/hyperjump/semantica/internal/config"
	"github.com/hyperjump/semantica/internal/storage"
)

func newStatsCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show entry count, dimensions and storage size of the index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := outputFormat(g)
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), g, false)
			if err != nil {
				return err
			}
			defer a.Close()

			x, err := a.repo.Load(cmd.Context())
			if err != nil {
				return err
			}
			stored, err := a.repo.StoredSize(cmd.Context())
			if err != nil {
				return err
			}
			disk, err := storage.DiskUsageBytes(localFiles(a.cfg)...)
			if err != nil {
				return err
			}
			return cli.WriteStats(cmd.OutOrStdout(), cli.Stats{
				Path:        a.cfg.Index.Path,
				Backend:     a.cfg.Storage.Backend,
				Compression: a.cfg.Storage.Compression,
				Entries:     x.Len(),
				Dimensions:  x.Dimension(),
				StoredBytes: stored,
				DiskBytes:   disk,
			}, format)
		},
	}
}

// localFiles lists the files on local disk that hold the index.
func localFiles(cfg *config.Config) []string {
	switch cfg.Storage.Backend {
	case "file":
		return []string{cfg.Index.Path}
	case "sqlite":
		p := cfg.Storage.SQLite.Path
		return []string{p, p + "-wal", p + "-shm"}
	}
	return nil
}
