package cmd

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"jenkinslog/logsplit/internal/db"
	"jenkinslog/logsplit/internal/graph"
)

var (
	inspectJSON    bool
	inspectCatalog string
	inspectRunID   string
	inspectTopN    int
	inspectNode    int
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [run]",
	Short: "Show node tree topology, stages and branches of a run",
	Long: `Inspect loads a run and reports its node tree: roots, depth distribution,
step kinds, the stages and parallel branches that split would write, and any
reused labels that were ignored. With --run-id the run is read back from the
catalog instead, and --node shows a single cataloged node.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			reg  *graph.Registry
			tree *graph.Tree
			idx  *graph.ShadowIndex
			err  error
		)

		if cmd.Flags().Changed("node") && inspectRunID == "" {
			return fmt.Errorf("--node requires --run-id")
		}

		if inspectRunID != "" {
			d, err := OpenCatalog(inspectCatalog, "db")
			if err != nil {
				return err
			}
			defer d.Close()
			if cmd.Flags().Changed("node") {
				return showNode(d, inspectRunID, inspectNode)
			}
			reg, err = graph.RegistryFromCatalog(d, inspectRunID)
			if err != nil {
				return fmt.Errorf("loading run %s: %w", inspectRunID, err)
			}
			tree, err = graph.BuildTree(reg)
			if err != nil {
				return fmt.Errorf("building tree: %w", err)
			}
			idx, err = graph.Classify(reg, tree, logger)
			if err != nil {
				return fmt.Errorf("classifying nodes: %w", err)
			}
		} else {
			p, err := openPipeline(args)
			if err != nil {
				return err
			}
			defer p.Close()
			reg, tree, idx = p.loaded.Registry, p.loaded.Tree, p.index
		}

		report := graph.ComputeTopology(reg, tree, idx)

		if inspectJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			err = enc.Encode(struct {
				*graph.TopologyReport
				Targets []graph.Target `json:"targets"`
			}{report, graph.Targets(idx)})
			return err
		}

		printTopology(report, graph.Targets(idx), inspectTopN)
		return nil
	},
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "Output as JSON")
	inspectCmd.Flags().StringVar(&inspectCatalog, "db", "", "Catalog to read --run-id from")
	inspectCmd.Flags().StringVar(&inspectRunID, "run-id", "", "Inspect a cataloged run instead of a run location")
	inspectCmd.Flags().IntVar(&inspectTopN, "top-n", 10, "Number of step kinds to show")
	inspectCmd.Flags().IntVar(&inspectNode, "node", 0, "Show one node of the --run-id run")
	rootCmd.AddCommand(inspectCmd)
}

// showNode prints one cataloged node row
func showNode(d *db.DB, runID string, id int) error {
	n, err := d.GetNode(runID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("node %d not found in run %s", id, runID)
	}
	if err != nil {
		return fmt.Errorf("reading node %d: %w", id, err)
	}

	if inspectJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(n)
	}

	fmt.Printf("\n  NODE %d\n", n.ID)
	fmt.Println("  ────────────────────────────────────────")
	fmt.Printf("  Run:    %s\n", n.RunID)
	fmt.Printf("  Parent: %s\n", optionalInt(n.ParentID))
	fmt.Printf("  Step:   %s\n", n.StepKind)
	fmt.Printf("  Class:  %s\n", n.NodeClass)
	if n.StageLabel != nil {
		fmt.Printf("  Stage:  %s\n", *n.StageLabel)
	}
	if n.BranchLabel != nil {
		fmt.Printf("  Branch: %s\n", *n.BranchLabel)
	}
	fmt.Println()
	return nil
}

func optionalInt(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprint(*v)
}

func printTopology(t *graph.TopologyReport, targets []graph.Target, topN int) {
	fmt.Println("\n  TOPOLOGY")
	fmt.Println("  ────────────────────────────────────────")
	fmt.Printf("  Nodes: %d  With output: %d  Output: %s\n",
		t.TotalNodes, t.NodesWithOutput, humanize.IBytes(uint64(t.TotalBytes)))
	fmt.Printf("  Roots: %s  Trees: %d  Largest tree: %d  Max depth: %d\n",
		formatRoots(t.RootTrees), t.Trees, t.LargestTree, t.MaxDepth)

	// Depth distribution
	if len(t.DepthHistogram) > 0 {
		fmt.Println("\n  Depth distribution:")
		for _, b := range t.DepthHistogram {
			if b.Count > 0 {
				barWidth := int(math.Log2(float64(b.Count))) + 2
				fmt.Printf("    %5d: %4d  %s\n", b.Depth, b.Count, strings.Repeat("=", barWidth))
			}
		}
	}

	// Step kinds
	if len(t.Kinds) > 0 {
		fmt.Println("\n  Step kinds:")
		limit := topN
		if len(t.Kinds) < limit {
			limit = len(t.Kinds)
		}
		for _, k := range t.Kinds[:limit] {
			fmt.Printf("    %-30s %d\n", truncLabel(k.Kind, 30), k.Count)
		}
		if len(t.Kinds) > limit {
			fmt.Printf("    ... and %d more\n", len(t.Kinds)-limit)
		}
	}

	fmt.Println("\n  STAGES")
	fmt.Println("  ────────────────────────────────────────")
	if len(t.Stages) == 0 {
		fmt.Println("  No stages found, split would write nothing")
	}
	for _, s := range t.Stages {
		fmt.Printf("  %s (node %d, depth %d, %d nodes)\n", truncLabel(s.Label, 50), s.Representative, s.Depth, s.Nodes)
		for _, b := range s.Branches {
			fmt.Printf("    ├─ %s\n", truncLabel(b, 50))
		}
	}

	if len(targets) > 0 {
		fmt.Println("\n  Files:")
		for _, tg := range targets {
			fmt.Printf("    %-9s %s\n", tg.Kind, tg.Path)
		}
	}

	if len(t.Duplicates) > 0 {
		fmt.Println("\n  REUSED LABELS")
		fmt.Println("  ────────────────────────────────────────")
		for _, d := range t.Duplicates {
			label := d.Stage
			if d.Branch != "" {
				label += " / " + d.Branch
			}
			fmt.Printf("  node %d: %s (node %d kept)\n", d.NodeID, truncLabel(label, 50), d.KeptID)
		}
	}
	fmt.Println()
}

func truncLabel(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

// formatRoots renders roots with their tree sizes, e.g. "1(11),12(3)"
func formatRoots(roots []graph.RootTree) string {
	parts := make([]string, len(roots))
	for i, r := range roots {
		parts[i] = fmt.Sprintf("%d(%d)", r.Root, r.Nodes)
	}
	return strings.Join(parts, ",")
}
