package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/labelsense/labelsense/internal/taxonomy"
)

var (
	builddictManifest string
	builddictRawDir   string
	builddictOutDir   string
)

var builddictCmd = &cobra.Command{
	Use:   "builddict",
	Short: "Build reference catalog tables from taxonomy files",
	Long:  "Parses Open Food Facts taxonomy files and writes the JSON lookup tables the analysis pipeline loads at startup.",
	RunE: func(cmd *cobra.Command, args []string) error {
		manifest := taxonomy.DefaultManifest()
		if builddictManifest != "" {
			m, err := taxonomy.LoadManifest(builddictManifest)
			if err != nil {
				return eris.Wrap(err, "load manifest")
			}
			manifest = m
		}

		outDir := builddictOutDir
		if outDir == "" {
			outDir = cfg.Catalog.Dir
		}

		if err := manifest.Build(builddictRawDir, outDir); err != nil {
			return eris.Wrap(err, "build tables")
		}

		zap.L().Info("catalog tables built",
			zap.Int("tables", len(manifest.Tables)),
			zap.String("out_dir", outDir),
		)
		return nil
	},
}

func init() {
	builddictCmd.Flags().StringVar(&builddictManifest, "manifest", "", "YAML manifest path (default: built-in table list)")
	builddictCmd.Flags().StringVar(&builddictRawDir, "raw-dir", "raw", "directory holding the source taxonomy files")
	builddictCmd.Flags().StringVar(&builddictOutDir, "out-dir", "", "output directory for JSON tables (default: catalog dir from config)")
	rootCmd.AddCommand(builddictCmd)
}
