// Package buildlog locates the artifacts of a pipeline run (a build directory
// or a .zip of one) and loads them into the node model.
package buildlog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"jenkinslog/logsplit/internal/graph"
	"jenkinslog/logsplit/internal/workflow"
)

// ErrArtifactMissing is returned when a run lacks its log or log-index.
var ErrArtifactMissing = errors.New("run artifact missing")

const (
	indexName    = "log-index"
	logName      = "log"
	workflowDir  = "workflow"
	recordSuffix = ".xml"
)

// Run is a located pipeline run.
type Run struct {
	Location  string // as given by the caller
	Root      string // directory holding the artifacts
	IndexPath string
	LogPath   string
	Records   map[int]string // node id -> record file

	tempDir string
}

// Open resolves location, a directory or a .zip archive, to a Run. Close must
// be called to remove any extracted files.
func Open(location string) (*Run, error) {
	info, err := os.Stat(location)
	if err != nil {
		return nil, fmt.Errorf("opening run: %w", err)
	}

	run := &Run{Location: location}
	switch {
	case info.IsDir():
		run.Root = location
	case strings.EqualFold(filepath.Ext(location), ".zip"):
		dir, err := os.MkdirTemp("", "logsplit-")
		if err != nil {
			return nil, fmt.Errorf("creating extraction directory: %w", err)
		}
		run.tempDir = dir
		run.Root = dir
		if err := extractZip(location, dir); err != nil {
			run.Close()
			return nil, fmt.Errorf("extracting %s: %w", location, err)
		}
	default:
		return nil, fmt.Errorf("opening run: %s is neither a directory nor a .zip archive", location)
	}

	if err := run.locate(); err != nil {
		run.Close()
		return nil, err
	}
	return run, nil
}

// Close removes the extraction directory of an archived run.
func (r *Run) Close() error {
	if r.tempDir == "" {
		return nil
	}
	err := os.RemoveAll(r.tempDir)
	r.tempDir = ""
	return err
}

// NodeIDs returns the ids of all records in ascending order.
func (r *Run) NodeIDs() []int {
	ids := make([]int, 0, len(r.Records))
	for id := range r.Records {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// locate walks the run in lexical order and keeps the first log-index, the
// first log, and every record below a workflow directory.
func (r *Run) locate() error {
	r.Records = make(map[int]string)
	err := filepath.WalkDir(r.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		switch {
		case name == indexName:
			if r.IndexPath == "" {
				r.IndexPath = path
			}
		case name == logName:
			if r.LogPath == "" {
				r.LogPath = path
			}
		case strings.HasSuffix(name, recordSuffix) && filepath.Base(filepath.Dir(path)) == workflowDir:
			id, err := graph.ParseNodeID(strings.TrimSuffix(name, recordSuffix), path)
			if err != nil {
				return err
			}
			if prev, ok := r.Records[id]; ok {
				return fmt.Errorf("node %d has two records: %s and %s", id, prev, path)
			}
			r.Records[id] = path
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scanning run: %w", err)
	}
	if r.IndexPath == "" {
		return fmt.Errorf("%w: no %s below %s", ErrArtifactMissing, indexName, r.Location)
	}
	if r.LogPath == "" {
		return fmt.Errorf("%w: no %s below %s", ErrArtifactMissing, logName, r.Location)
	}
	return nil
}

// Loaded is a run with its registry built and its index applied.
type Loaded struct {
	Registry *graph.Registry
	Tree     *graph.Tree
}

// Load parses every record, builds the registry and tree, and attaches the
// byte ranges from the log-index.
func (r *Run) Load(paths workflow.FieldPaths, kinds graph.Kinds, logger *zap.Logger) (*Loaded, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	store := workflow.NewStore(paths)
	ids := r.NodeIDs()
	for _, id := range ids {
		rec, err := workflow.ReadRecordFile(r.Records[id])
		if err != nil {
			return nil, fmt.Errorf("reading node %d: %w", id, err)
		}
		store.Add(id, rec)
	}
	logger.Debug("parsed workflow records", zap.Int("records", store.Len()))

	reg, err := graph.BuildRegistry(ids, store, kinds)
	if err != nil {
		return nil, fmt.Errorf("building registry: %w", err)
	}

	f, err := os.Open(r.IndexPath)
	if err != nil {
		return nil, fmt.Errorf("opening log-index: %w", err)
	}
	defer f.Close()
	if err := graph.LoadIndex(f, reg); err != nil {
		return nil, fmt.Errorf("loading log-index: %w", err)
	}

	tree, err := graph.BuildTree(reg)
	if err != nil {
		return nil, fmt.Errorf("building tree: %w", err)
	}
	logger.Debug("built node tree", zap.Int("nodes", tree.Len()), zap.Int("roots", len(tree.Roots)))
	return &Loaded{Registry: reg, Tree: tree}, nil
}

// OpenLog opens the shared console stream read-only.
func (r *Run) OpenLog() (*os.File, error) {
	return os.Open(r.LogPath)
}
