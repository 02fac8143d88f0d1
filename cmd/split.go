package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"jenkinslog/logsplit/internal/graph"
)

var (
	splitTarget  string
	splitJobs    int
	splitCatalog string
	splitJSON    bool
)

var splitCmd = &cobra.Command{
	Use:   "split [run]",
	Short: "Write one log file per stage and per parallel branch",
	Long: `Split reads the log, log-index and workflow/*.xml of a pipeline run (a build
directory or a .zip of one) and writes:

  <stage>.log                 for stages without parallel branches
  <stage>/<stage>.log         for the stage overview
  <stage>/<branch>.log        for each parallel branch`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := cfg.Target
		if cmd.Flags().Changed("target") {
			target = splitTarget
		}
		jobs := cfg.Jobs
		if cmd.Flags().Changed("jobs") {
			jobs = splitJobs
		}
		if jobs < 1 {
			return fmt.Errorf("--jobs must be at least 1, got %d", jobs)
		}

		p, err := openPipeline(args)
		if err != nil {
			return err
		}
		defer p.Close()

		if err := os.MkdirAll(target, 0o755); err != nil {
			return fmt.Errorf("creating target: %w", err)
		}

		logFile, err := p.run.OpenLog()
		if err != nil {
			return fmt.Errorf("opening log: %w", err)
		}
		defer logFile.Close()

		splitter := &graph.Splitter{
			Registry: p.loaded.Registry,
			Tree:     p.loaded.Tree,
			Index:    p.index,
			Log:      logFile,
			Jobs:     jobs,
			Logger:   logger,
		}
		outputs, err := splitter.Run(context.Background(), target)
		if err != nil {
			return fmt.Errorf("splitting %s: %w", p.run.Location, err)
		}

		result := splitResult{Target: target, Outputs: outputs, Duplicates: p.index.Duplicates}

		catalogPath := splitCatalog
		if catalogPath == "" {
			catalogPath = cfg.Catalog
		}
		if catalogPath != "" {
			d, err := OpenCatalog(catalogPath, "catalog")
			if err != nil {
				return err
			}
			defer d.Close()
			runID, err := d.SaveRun(graph.CatalogData(p.run.Location, p.loaded.Registry, p.index, outputs))
			if err != nil {
				return fmt.Errorf("saving run: %w", err)
			}
			logger.Info("cataloged run", zap.String("run_id", runID), zap.String("catalog", catalogPath))
			result.RunID = runID
		}

		if splitJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}
		printSplitResult(result)
		return nil
	},
}

// splitResult is the --json output of split
type splitResult struct {
	Target     string            `json:"target"`
	RunID      string            `json:"run_id,omitempty"`
	Outputs    []graph.Output    `json:"outputs"`
	Duplicates []graph.Duplicate `json:"duplicates,omitempty"`
}

func init() {
	splitCmd.Flags().StringVarP(&splitTarget, "target", "t", "", "Output directory (default: current directory)")
	splitCmd.Flags().IntVar(&splitJobs, "jobs", 1, "Number of output files written concurrently")
	splitCmd.Flags().StringVar(&splitCatalog, "catalog", "", "Also record the run in this SQLite catalog")
	splitCmd.Flags().BoolVar(&splitJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(splitCmd)
}

func printSplitResult(r splitResult) {
	fmt.Printf("\n  Wrote %d files to %s\n", len(r.Outputs), r.Target)
	fmt.Println("  ────────────────────────────────────────")
	var total int64
	for _, o := range r.Outputs {
		fmt.Printf("  %-9s %-40s %4d nodes  %s\n", o.Kind, o.Path, o.Nodes, humanize.IBytes(uint64(o.Bytes)))
		total += o.Bytes
	}
	fmt.Printf("\n  Total output: %s\n", humanize.IBytes(uint64(total)))

	if len(r.Duplicates) > 0 {
		fmt.Printf("  %d reused labels ignored (first occurrence kept), see `logsplit inspect`\n", len(r.Duplicates))
	}
	if r.RunID != "" {
		fmt.Printf("  Catalog run: %s\n", r.RunID)
	}
	fmt.Println()
}
