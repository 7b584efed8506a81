package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/consensus-cli/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the snapshot tables in the configured database",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("cli"); err != nil {
			return err
		}

		st, err := store.Open(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := migrateStore(ctx, st); err != nil {
			return err
		}
		zap.L().Info("migrate: schema up to date", zap.String("driver", cfg.Store.Driver))
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load a YAML fixture into the configured database",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("cli"); err != nil {
			return err
		}
		if cfg.Store.Driver == "fixture" {
			return eris.New("seed: the fixture driver reads the file directly; choose postgres or sqlite")
		}

		path, _ := cmd.Flags().GetString("fixture")
		if path == "" {
			path = cfg.Store.FixturePath
		}
		f, err := store.LoadFixture(path)
		if err != nil {
			return err
		}

		st, err := store.Open(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := migrateStore(ctx, st); err != nil {
			return err
		}
		if err := st.Seed(ctx, f); err != nil {
			return err
		}
		zap.L().Info("seed: fixture loaded",
			zap.String("path", path),
			zap.Int("groups", len(f.Groups)),
			zap.Int("viewers", len(f.Viewers)),
			zap.Int("proposals", len(f.Proposals)),
		)
		return nil
	},
}

func init() {
	seedCmd.Flags().String("fixture", "", "fixture file (default from config store.fixture_path)")
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
}
