package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"jenkinslog/logsplit/internal/graph"
)

var catalogDB string

var catalogCmd = &cobra.Command{
	Use:   "catalog [run]",
	Short: "Record a run's nodes, ranges and stages in the SQLite catalog",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := openPipeline(args)
		if err != nil {
			return err
		}
		defer p.Close()

		d, err := OpenCatalog(catalogDB, "db")
		if err != nil {
			return err
		}
		defer d.Close()

		runID, err := d.SaveRun(graph.CatalogData(p.run.Location, p.loaded.Registry, p.index, nil))
		if err != nil {
			return fmt.Errorf("saving run: %w", err)
		}
		logger.Info("cataloged run",
			zap.String("run_id", runID),
			zap.Int("nodes", p.loaded.Registry.Len()),
			zap.Int("stages", len(p.index.Stages)))
		fmt.Println(runID)
		return nil
	},
}

func init() {
	catalogCmd.Flags().StringVar(&catalogDB, "db", "", "Path to the catalog database (created when missing)")
	rootCmd.AddCommand(catalogCmd)
}
