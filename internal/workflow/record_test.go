package workflow

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jenkinslog/logsplit/internal/graph"
)

const stageRecord = `<?xml version='1.1' encoding='UTF-8'?>
<Tag plugin="workflow-support@3.3">
  <node class="cps.n.StepStartNode" plugin="workflow-cps@2.80">
    <parentIds>
      <string>3</string>
    </parentIds>
    <id>4</id>
    <descriptorId>org.jenkinsci.plugins.workflow.support.steps.StageStep</descriptorId>
  </node>
  <actions>
    <wf.a.LabelAction plugin="workflow-api@2.40">
      <displayName>Build &amp; Test (x86)</displayName>
    </wf.a.LabelAction>
    <org.jenkinsci.plugins.workflow.cps.steps.ParallelStepExecution_-ParallelLabelAction>
      <branchName></branchName>
    </org.jenkinsci.plugins.workflow.cps.steps.ParallelStepExecution_-ParallelLabelAction>
  </actions>
</Tag>`

func TestParseRecord_Lookup(t *testing.T) {
	rec, err := ParseRecord(strings.NewReader(stageRecord))
	require.NoError(t, err)

	tests := []struct {
		path   string
		want   string
		wantOK bool
	}{
		{"node/descriptorId", "org.jenkinsci.plugins.workflow.support.steps.StageStep", true},
		{"./node/descriptorId", "org.jenkinsci.plugins.workflow.support.steps.StageStep", true},
		{"node/parentIds/string", "3", true},
		{"actions/wf.a.LabelAction/displayName", "Build & Test (x86)", true},
		{"node@class", "cps.n.StepStartNode", true},
		{"node/@class", "cps.n.StepStartNode", true},
		{"@plugin", "workflow-support@3.3", true},
		{"node/missing", "", false},
		{"node@missing", "", false},
		{"node@class/id", "", false},
		{"actions/org.jenkinsci.plugins.workflow.cps.steps.ParallelStepExecution_-ParallelLabelAction/branchName", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := rec.Lookup(tt.path)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

// ANSI colored arguments are stored as XML 1.1 character references.
const coloredRecord = `<?xml version='1.1' encoding='UTF-8'?>
<Tag>
  <node class="cps.n.StepAtomNode">
    <id>9</id>
    <descriptorId>org.jenkinsci.plugins.workflow.steps.EchoStep</descriptorId>
  </node>
  <actions>
    <cps.a.ArgumentsActionImpl>
      <message>&#x1b;[31mred&#27;[0m&#9;tab &#x41;&#0;</message>
    </cps.a.ArgumentsActionImpl>
  </actions>
</Tag>`

func TestParseRecord_IllegalCharRefs(t *testing.T) {
	rec, err := ParseRecord(strings.NewReader(coloredRecord))
	require.NoError(t, err)

	kind, ok := rec.Lookup("node/descriptorId")
	require.True(t, ok)
	assert.Equal(t, "org.jenkinsci.plugins.workflow.steps.EchoStep", kind)

	msg, ok := rec.Lookup("actions/cps.a.ArgumentsActionImpl/message")
	require.True(t, ok)
	assert.Equal(t, "\uFFFD[31mred\uFFFD[0m\ttab A\uFFFD", msg)
}

func TestReplaceIllegalCharRefs(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"&#x1b;", "\uFFFD"},
		{"&#X1b;", "&#X1b;"},
		{"&#27;", "\uFFFD"},
		{"&#9;&#xA;&#13;", "&#9;&#xA;&#13;"},
		{"&#x20;&#xD7FF;&#xE000;&#xFFFD;&#x10000;", "&#x20;&#xD7FF;&#xE000;&#xFFFD;&#x10000;"},
		{"&#xFFFE;&#xD800;&#x110000;", "\uFFFD\uFFFD\uFFFD"},
		{"&#99999999999;", "\uFFFD"},
		{"&amp;#x1b;", "&amp;#x1b;"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, string(replaceIllegalCharRefs([]byte(tt.in))), tt.in)
	}
}

func TestParseRecord_Errors(t *testing.T) {
	_, err := ParseRecord(strings.NewReader(""))
	assert.Error(t, err)

	_, err = ParseRecord(strings.NewReader("<a><b></a>"))
	assert.Error(t, err)
}

func TestStore_Field(t *testing.T) {
	rec, err := ParseRecord(strings.NewReader(stageRecord))
	require.NoError(t, err)

	s := NewStore(DefaultFieldPaths())
	s.Add(4, rec)
	assert.Equal(t, 1, s.Len())

	v, ok := s.Field(4, graph.FieldParentID)
	assert.True(t, ok)
	assert.Equal(t, "3", v)

	v, ok = s.Field(4, graph.FieldNodeClass)
	assert.True(t, ok)
	assert.Equal(t, "cps.n.StepStartNode", v)

	_, ok = s.Field(4, graph.FieldBranchLabel)
	assert.False(t, ok, "empty branch name is absent")

	_, ok = s.Field(5, graph.FieldStepKind)
	assert.False(t, ok, "unknown node")

	_, ok = s.Field(4, "no_such_field")
	assert.False(t, ok)
}

func TestStore_BuildRegistry(t *testing.T) {
	rec, err := ParseRecord(strings.NewReader(stageRecord))
	require.NoError(t, err)
	root, err := ParseRecord(strings.NewReader(`<Tag><node class="cps.n.FlowStartNode"/></Tag>`))
	require.NoError(t, err)

	s := NewStore(DefaultFieldPaths())
	s.Add(3, root)
	s.Add(4, rec)

	reg, err := graph.BuildRegistry([]int{3, 4}, s, graph.DefaultKinds())
	require.NoError(t, err)

	stage := reg.Get(4)
	require.NotNil(t, stage)
	assert.Equal(t, "StageStep", stage.StepKind)
	require.NotNil(t, stage.StageLabel)
	assert.Equal(t, "Build & Test (x86)", *stage.StageLabel)
	require.NotNil(t, stage.ParentID)
	assert.Equal(t, 3, *stage.ParentID)

	assert.Nil(t, reg.Get(3).ParentID)
	assert.Equal(t, "", reg.Get(3).StepKind)
}
