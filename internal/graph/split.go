package graph

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// TargetKind tells which selection rule an output file uses.
type TargetKind string

const (
	TargetStage    TargetKind = "stage"    // stage without parallel branches
	TargetOverview TargetKind = "overview" // stage part outside any branch
	TargetBranch   TargetKind = "branch"
)

// Target is one output file to produce.
type Target struct {
	Path           string     `json:"path"` // relative to the output root
	Kind           TargetKind `json:"kind"`
	Stage          string     `json:"stage"`
	Branch         string     `json:"branch,omitempty"`
	Representative int        `json:"representative"`
}

// Output describes a written file.
type Output struct {
	Target
	Nodes int   `json:"nodes"`
	Bytes int64 `json:"bytes"`
}

// Targets lists the output files for idx in stage order: a flat file per
// stage without branches, otherwise a directory holding an overview file and
// one file per branch. No two targets share a path: a name already taken,
// compared case-insensitively, gets the representative id appended, so the
// overview keeps "<stage>.log" when a branch reuses the stage's name.
func Targets(idx *ShadowIndex) []Target {
	var targets []Target
	stageNames := make(names)
	for _, s := range idx.Stages {
		stageName := stageNames.reserve(FileName(s.Label, s.Representative), s.Representative)
		if len(s.Branches) == 0 {
			targets = append(targets, Target{
				Path:           stageName + ".log",
				Kind:           TargetStage,
				Stage:          s.Label,
				Representative: s.Representative,
			})
			continue
		}

		fileNames := make(names)
		targets = append(targets, Target{
			Path:           filepath.Join(stageName, fileNames.reserve(stageName, s.Representative)+".log"),
			Kind:           TargetOverview,
			Stage:          s.Label,
			Representative: s.Representative,
		})
		for _, b := range s.Branches {
			branchName := fileNames.reserve(FileName(b.Label, b.Representative), b.Representative)
			targets = append(targets, Target{
				Path:           filepath.Join(stageName, branchName+".log"),
				Kind:           TargetBranch,
				Stage:          s.Label,
				Branch:         b.Label,
				Representative: b.Representative,
			})
		}
	}
	return targets
}

// names is the set of file names used within one directory
type names map[string]bool

// reserve returns name, or name-<id> when name is taken, and marks the
// result as used.
func (n names) reserve(name string, id int) string {
	candidate := name
	if n[strings.ToLower(candidate)] {
		candidate = fmt.Sprintf("%s-%d", name, id)
	}
	for i := 2; n[strings.ToLower(candidate)]; i++ {
		candidate = fmt.Sprintf("%s-%d-%d", name, id, i)
	}
	n[strings.ToLower(candidate)] = true
	return candidate
}

// Splitter writes the per-stage and per-branch log files of a run.
type Splitter struct {
	Registry *Registry
	Tree     *Tree
	Index    *ShadowIndex
	Log      io.ReaderAt // the shared console stream
	Jobs     int         // concurrent targets; <= 1 runs sequentially
	Logger   *zap.Logger
}

// Run writes every target below root, which must exist. Outputs are returned
// in target order whatever the concurrency.
func (s *Splitter) Run(ctx context.Context, root string) ([]Output, error) {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	targets := Targets(s.Index)
	outputs := make([]Output, len(targets))

	jobs := s.Jobs
	if jobs < 1 {
		jobs = 1
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, t := range targets {
		i, t := i, t
		g.Go(func() error {
			out, err := s.writeTarget(ctx, root, t)
			if err != nil {
				return fmt.Errorf("writing %s: %w", t.Path, err)
			}
			outputs[i] = out
			logger.Info("wrote log",
				zap.String("path", t.Path),
				zap.String("stage", t.Stage),
				zap.String("branch", t.Branch),
				zap.Int("nodes", out.Nodes),
				zap.Int64("bytes", out.Bytes))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outputs, nil
}

// Matches reports whether node belongs in target t.
func (s *Splitter) Matches(t Target, node *Node) bool {
	if !IsAncestor(s.Registry, t.Representative, node.ID) {
		return false
	}
	enc := s.Index.Enclosing(s.Registry, node.ID)
	switch t.Kind {
	case TargetStage:
		return enc.Stage != nil && *enc.Stage == t.Stage
	case TargetOverview:
		return enc.Stage != nil && *enc.Stage == t.Stage && enc.Branch == nil
	case TargetBranch:
		return enc.Branch != nil && *enc.Branch == t.Branch
	}
	return false
}

func (s *Splitter) writeTarget(ctx context.Context, root string, t Target) (Output, error) {
	out := Output{Target: t}
	path := filepath.Join(root, t.Path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return out, fmt.Errorf("creating directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return out, err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	walker := NewWalker(s.Registry, s.Tree)
	for node, ok := walker.Next(); ok; node, ok = walker.Next() {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if !s.Matches(t, node) {
			continue
		}
		n, err := s.writeNode(w, node)
		if err != nil {
			return out, err
		}
		out.Nodes++
		out.Bytes += n
	}
	if err := w.Flush(); err != nil {
		return out, err
	}
	return out, f.Close()
}

// writeNode writes the node header and its log text, returning the number of
// log bytes written.
func (s *Splitter) writeNode(w io.Writer, node *Node) (int64, error) {
	if _, err := io.WriteString(w, Header(node)); err != nil {
		return 0, err
	}
	if len(node.Ranges) == 0 {
		return 0, nil
	}
	text, err := node.Extract(s.Log)
	if err != nil {
		return 0, err
	}
	n, err := w.Write(text)
	return int64(n), err
}

// Header is the line introducing a node in an output file.
func Header(node *Node) string {
	kind := node.StepKind
	if kind == "" {
		kind = "unknown"
	}
	return fmt.Sprintf(">>> NodeID: %d, Step: %s\n", node.ID, kind)
}
