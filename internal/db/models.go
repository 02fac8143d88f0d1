package db

// Run represents a row in the runs table
type Run struct {
	ID        string `json:"id"` // uuid
	Location  string `json:"location"`
	CreatedAt int64  `json:"created_at"` // Unix millis
	NodeCount int    `json:"node_count"`
}

// Node represents a row in the nodes table
type Node struct {
	RunID       string  `json:"run_id"`
	ID          int     `json:"id"`
	ParentID    *int    `json:"parent_id"`
	StepKind    string  `json:"step_kind"`
	NodeClass   string  `json:"node_class"`
	StageLabel  *string `json:"stage_label"`
	BranchLabel *string `json:"branch_label"`
}

// Range represents a row in the ranges table
type Range struct {
	RunID  string `json:"run_id"`
	NodeID int    `json:"node_id"`
	Seq    int    `json:"seq"` // position in the node's range list
	Start  int64  `json:"start"`
	End    int64  `json:"end"`
}

// Stage represents a row in the stages table: a stage when Branch is nil,
// otherwise one of its parallel branches
type Stage struct {
	RunID          string  `json:"run_id"`
	Seq            int     `json:"seq"`
	Label          string  `json:"label"`
	Branch         *string `json:"branch"`
	Representative int     `json:"representative"`
}

// Output represents a row in the outputs table
type Output struct {
	RunID     string  `json:"run_id"`
	Path      string  `json:"path"`
	Kind      string  `json:"kind"` // "stage", "overview", "branch"
	Stage     string  `json:"stage"`
	Branch    *string `json:"branch"`
	NodeCount int     `json:"node_count"`
	Bytes     int64   `json:"bytes"`
}
