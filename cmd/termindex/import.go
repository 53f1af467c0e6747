package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hazyhaar/termindex/pkg/config"
	"github.com/hazyhaar/termindex/pkg/importer"
	"github.com/spf13/cobra"
)

// openSources opens the source registry and seeds a row per adapter.
func openSources(cfg *config.Config) (*importer.SourceDB, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.SourcesDBPath()), 0o755); err != nil {
		return nil, fmt.Errorf("create sources dir: %w", err)
	}
	sdb, err := importer.OpenSourceDB(cfg.SourcesDBPath())
	if err != nil {
		return nil, err
	}
	if err := sdb.Seed(importer.All()); err != nil {
		sdb.Close()
		return nil, err
	}
	return sdb, nil
}

func newImportCmd(cfgPath *string) *cobra.Command {
	var (
		source    string
		all       bool
		setURL    string
		outputDir string
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Download and build code systems from public sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			config.NewLogger(cfg.Log, cmd.ErrOrStderr())
			if outputDir == "" {
				outputDir = cfg.Index.Dir
			}

			sdb, err := openSources(cfg)
			if err != nil {
				return err
			}
			defer sdb.Close()

			out := cmd.OutOrStdout()

			if setURL != "" {
				if source == "" {
					return fmt.Errorf("--set-url requires --source")
				}
				if err := sdb.SetURL(source, setURL); err != nil {
					return err
				}
				fmt.Fprintf(out, "[%s] source URL set to %s\n", source, setURL)
				return nil
			}

			if !all && source == "" {
				sources, err := sdb.ListSources()
				if err != nil {
					return err
				}
				fmt.Fprintln(out, "Available sources:")
				fmt.Fprintln(out)
				for _, src := range sources {
					status := ""
					if src.LastStatus != nil {
						status = fmt.Sprintf("  [%d]", *src.LastStatus)
					}
					fmt.Fprintf(out, "  %-26s  %s  (-> %s)%s\n", src.AdapterID, src.Description, src.CodeSystemID, status)
				}
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Usage:")
				fmt.Fprintln(out, "  termindex import --source <id> [--output-dir <dir>]")
				fmt.Fprintln(out, "  termindex import --all [--output-dir <dir>]")
				return nil
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Hour)
			defer cancel()

			adapters := importer.All()
			if !all {
				a, err := importer.Get(source)
				if err != nil {
					return err
				}
				adapters = []importer.Adapter{a}
			}

			var failed int
			for _, a := range adapters {
				if err := runImport(ctx, sdb, a, outputDir); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "[%s] ERROR: %v\n", a.ID(), err)
					failed++
					continue
				}
				fmt.Fprintf(out, "[%s] OK -> %s\n", a.ID(), filepath.Join(outputDir, a.CodeSystemID()))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d imports failed", failed, len(adapters))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "adapter ID to import (e.g. cdc-icd10cm)")
	cmd.Flags().BoolVar(&all, "all", false, "import every registered source")
	cmd.Flags().StringVar(&setURL, "set-url", "", "override the download URL of --source")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "output directory (default index.dir)")
	return cmd
}

func runImport(ctx context.Context, sdb *importer.SourceDB, a importer.Adapter, outputDir string) error {
	url, err := sdb.GetURL(a.ID())
	if err != nil {
		return err
	}
	if err := a.Import(ctx, url, outputDir); err != nil {
		return err
	}
	return sdb.MarkImported(a.ID())
}

func newCheckCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check once that every import source URL is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			logger := config.NewLogger(cfg.Log, cmd.ErrOrStderr())

			sdb, err := openSources(cfg)
			if err != nil {
				return err
			}
			defer sdb.Close()

			ok, failed := importer.NewChecker(sdb, logger, cfg.Import.CheckInterval).CheckAll(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "%d reachable, %d unreachable\n", ok, failed)
			if failed > 0 {
				return fmt.Errorf("%d sources unreachable", failed)
			}
			return nil
		},
	}
}
