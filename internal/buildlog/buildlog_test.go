package buildlog

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jenkinslog/logsplit/internal/graph"
	"jenkinslog/logsplit/internal/workflow"
)

type recordSpec struct {
	id     int
	parent int // 0 for a root
	kind   string
	stage  string
	branch string
}

func (r recordSpec) xml() string {
	parents := ""
	if r.parent != 0 {
		parents = fmt.Sprintf("<parentIds><string>%d</string></parentIds>", r.parent)
	}
	actions := ""
	if r.stage != "" {
		actions += fmt.Sprintf("<wf.a.LabelAction><displayName>%s</displayName></wf.a.LabelAction>", r.stage)
	}
	if r.branch != "" {
		actions += "<org.jenkinsci.plugins.workflow.cps.steps.ParallelStepExecution_-ParallelLabelAction>" +
			fmt.Sprintf("<branchName>%s</branchName>", r.branch) +
			"</org.jenkinsci.plugins.workflow.cps.steps.ParallelStepExecution_-ParallelLabelAction>"
	}
	return fmt.Sprintf(`<?xml version='1.1' encoding='UTF-8'?>
<Tag plugin="workflow-support@3.3">
  <node class="cps.n.StepAtomNode">%s<id>%d</id><descriptorId>org.jenkinsci.plugins.%s</descriptorId></node>
  <actions>%s</actions>
</Tag>`, parents, r.id, r.kind, actions)
}

var pipelineRecords = []recordSpec{
	{id: 1, kind: "FlowStartNode"},
	{id: 2, parent: 1, kind: "StageStep", stage: "Checkout"},
	{id: 3, parent: 2, kind: "EchoStep"},
	{id: 4, parent: 1, kind: "StageStep", stage: "Build &amp; Test"},
	{id: 5, parent: 4, kind: "ShStep"},
	{id: 6, parent: 4, kind: "ParallelStep"},
	{id: 7, parent: 6, kind: "ParallelStep", branch: "unit"},
	{id: 8, parent: 6, kind: "ParallelStep", branch: "integration"},
	{id: 9, parent: 7, kind: "ShStep"},
	{id: 10, parent: 8, kind: "ShStep"},
	{id: 11, parent: 4, kind: "EchoStep"},
}

const (
	pipelineLog   = "checkout\ncompile\nunit ok\nintegration ok\ndone\n"
	pipelineIndex = "0 3\n9 5\n17 9\n25 10\n40 11\n45\n"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// writeRun lays out a build directory the way Jenkins stores it.
func writeRun(t *testing.T, dir string, records []recordSpec) {
	t.Helper()
	writeFile(t, filepath.Join(dir, "log"), pipelineLog)
	writeFile(t, filepath.Join(dir, "log-index"), pipelineIndex)
	for _, r := range records {
		writeFile(t, filepath.Join(dir, "workflow", fmt.Sprintf("%d.xml", r.id)), r.xml())
	}
	// not a node record
	writeFile(t, filepath.Join(dir, "build.xml"), "<build/>")
}

func zipDir(t *testing.T, dir, archive, prefix string) {
	t.Helper()
	f, err := os.Create(archive)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, _ := filepath.Rel(dir, path)
		w, err := zw.Create(filepath.ToSlash(filepath.Join(prefix, rel)))
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	})
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func TestOpen_Directory(t *testing.T) {
	dir := t.TempDir()
	writeRun(t, dir, pipelineRecords)

	run, err := Open(dir)
	require.NoError(t, err)
	defer run.Close()

	assert.Equal(t, dir, run.Root)
	assert.Equal(t, filepath.Join(dir, "log"), run.LogPath)
	assert.Equal(t, filepath.Join(dir, "log-index"), run.IndexPath)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}, run.NodeIDs())
}

func TestOpen_ZipArchive(t *testing.T) {
	src := t.TempDir()
	writeRun(t, src, pipelineRecords)
	archive := filepath.Join(t.TempDir(), "build-42.zip")
	zipDir(t, src, archive, "42")

	run, err := Open(archive)
	require.NoError(t, err)
	root := run.Root
	assert.NotEqual(t, archive, root)
	assert.Len(t, run.Records, len(pipelineRecords))
	assert.Equal(t, filepath.Join(root, "42", "log"), run.LogPath)

	require.NoError(t, run.Close())
	_, err = os.Stat(root)
	assert.True(t, os.IsNotExist(err), "extraction directory is removed on Close")
}

func TestOpen_ZipSlipRejected(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "evil.zip")
	f, err := os.Create(archive)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("../../escaped")
	require.NoError(t, err)
	_, err = w.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	_, err = Open(archive)
	assert.Error(t, err, "entries outside the extraction directory are refused")
}

func TestOpen_Errors(t *testing.T) {
	t.Run("missing location", func(t *testing.T) {
		_, err := Open(filepath.Join(t.TempDir(), "nope"))
		assert.Error(t, err)
	})

	t.Run("plain file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "log.txt")
		writeFile(t, path, "x")
		_, err := Open(path)
		assert.Error(t, err)
	})

	t.Run("missing index", func(t *testing.T) {
		dir := t.TempDir()
		writeRun(t, dir, pipelineRecords)
		require.NoError(t, os.Remove(filepath.Join(dir, "log-index")))
		_, err := Open(dir)
		assert.True(t, errors.Is(err, ErrArtifactMissing), "got %v", err)
	})

	t.Run("missing log", func(t *testing.T) {
		dir := t.TempDir()
		writeRun(t, dir, pipelineRecords)
		require.NoError(t, os.Remove(filepath.Join(dir, "log")))
		_, err := Open(dir)
		assert.True(t, errors.Is(err, ErrArtifactMissing), "got %v", err)
	})

	t.Run("non numeric record name", func(t *testing.T) {
		dir := t.TempDir()
		writeRun(t, dir, pipelineRecords)
		writeFile(t, filepath.Join(dir, "workflow", "start.xml"), "<Tag/>")
		_, err := Open(dir)
		var invalid *graph.InvalidNodeIDError
		assert.True(t, errors.As(err, &invalid), "got %v", err)
	})
}

func TestRun_Load(t *testing.T) {
	dir := t.TempDir()
	writeRun(t, dir, pipelineRecords)
	run, err := Open(dir)
	require.NoError(t, err)
	defer run.Close()

	loaded, err := run.Load(workflow.DefaultFieldPaths(), graph.DefaultKinds(), nil)
	require.NoError(t, err)

	reg := loaded.Registry
	assert.Equal(t, 11, reg.Len())
	assert.Equal(t, []int{1}, loaded.Tree.Roots)
	assert.Equal(t, "StageStep", reg.Get(4).StepKind)
	assert.Equal(t, "Build & Test", *reg.Get(4).StageLabel)
	assert.Equal(t, "unit", *reg.Get(7).BranchLabel)
	assert.Equal(t, "cps.n.StepAtomNode", reg.Get(3).NodeClass)
	assert.Equal(t, []graph.Range{{Start: 17, End: 25}}, reg.Get(9).Ranges)
	assert.Nil(t, reg.Get(1).ParentID)
}

func TestRun_LoadDanglingParent(t *testing.T) {
	dir := t.TempDir()
	records := append([]recordSpec{}, pipelineRecords...)
	records[2].parent = 99
	writeRun(t, dir, records)
	run, err := Open(dir)
	require.NoError(t, err)
	defer run.Close()

	_, err = run.Load(workflow.DefaultFieldPaths(), graph.DefaultKinds(), nil)
	var dangling *graph.DanglingParentError
	require.True(t, errors.As(err, &dangling), "got %v", err)
	assert.Equal(t, 3, dangling.NodeID)
	assert.Equal(t, 99, dangling.ParentID)
}

func TestEndToEnd_Split(t *testing.T) {
	src := t.TempDir()
	writeRun(t, src, pipelineRecords)
	archive := filepath.Join(t.TempDir(), "run.zip")
	zipDir(t, src, archive, "")

	run, err := Open(archive)
	require.NoError(t, err)
	defer run.Close()

	loaded, err := run.Load(workflow.DefaultFieldPaths(), graph.DefaultKinds(), nil)
	require.NoError(t, err)
	idx, err := graph.Classify(loaded.Registry, loaded.Tree, nil)
	require.NoError(t, err)

	logFile, err := run.OpenLog()
	require.NoError(t, err)
	defer logFile.Close()

	target := t.TempDir()
	s := &graph.Splitter{Registry: loaded.Registry, Tree: loaded.Tree, Index: idx, Log: logFile, Jobs: 2}
	outputs, err := s.Run(context.Background(), target)
	require.NoError(t, err)

	var paths []string
	for _, o := range outputs {
		paths = append(paths, filepath.ToSlash(o.Path))
	}
	want := []string{
		"Checkout.log",
		"Build_and_Test/Build_and_Test.log",
		"Build_and_Test/unit.log",
		"Build_and_Test/integration.log",
	}
	if diff := cmp.Diff(want, paths); diff != "" {
		t.Errorf("outputs mismatch (-want +got):\n%s", diff)
	}

	data, err := os.ReadFile(filepath.Join(target, "Build_and_Test", "unit.log"))
	require.NoError(t, err)
	assert.Equal(t, ">>> NodeID: 9, Step: ShStep\nunit ok\n", string(data))
}
