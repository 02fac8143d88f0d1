package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"jenkinslog/logsplit/internal/db"
)

var (
	runsDB      string
	runsJSON    bool
	runsOutputs bool
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List runs recorded in the catalog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := OpenCatalog(runsDB, "db")
		if err != nil {
			return err
		}
		defer d.Close()

		runs, err := d.ListRuns()
		if err != nil {
			return fmt.Errorf("listing runs: %w", err)
		}

		entries := make([]runEntry, 0, len(runs))
		for _, r := range runs {
			e := runEntry{Run: r}
			stages, err := d.StagesForRun(r.ID)
			if err != nil {
				return err
			}
			for _, s := range stages {
				if s.Branch == nil {
					e.Stages++
				} else {
					e.Branches++
				}
			}
			if runsOutputs {
				e.Outputs, err = d.OutputsForRun(r.ID)
				if err != nil {
					return err
				}
			}
			entries = append(entries, e)
		}

		if runsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		}

		if len(entries) == 0 {
			fmt.Println("No runs cataloged.")
			return nil
		}
		for _, e := range entries {
			created := time.UnixMilli(e.CreatedAt)
			fmt.Printf("%s  %s  %d nodes, %d stages, %d branches  %s\n",
				truncID(e.ID), humanize.Time(created), e.NodeCount, e.Stages, e.Branches, e.Location)
			for _, o := range e.Outputs {
				fmt.Printf("    %-9s %-40s %s\n", o.Kind, o.Path, humanize.IBytes(uint64(o.Bytes)))
			}
		}
		return nil
	},
}

// runEntry is one cataloged run with its stage counts
type runEntry struct {
	db.Run
	Stages   int         `json:"stages"`
	Branches int         `json:"branches"`
	Outputs  []db.Output `json:"outputs,omitempty"`
}

func init() {
	runsCmd.Flags().StringVar(&runsDB, "db", "", "Path to the catalog database")
	runsCmd.Flags().BoolVar(&runsJSON, "json", false, "Output as JSON")
	runsCmd.Flags().BoolVar(&runsOutputs, "outputs", false, "Include the files written for each run")
	rootCmd.AddCommand(runsCmd)
}

func truncID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
