package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunData is everything recorded for one processed run
type RunData struct {
	Location string
	Nodes    []Node
	Ranges   []Range
	Stages   []Stage
	Outputs  []Output
}

// SaveRun stores a run in a single transaction and returns its new id.
// RunID fields of the rows are filled in.
func (d *DB) SaveRun(data RunData) (string, error) {
	run := Run{
		ID:        uuid.NewString(),
		Location:  data.Location,
		CreatedAt: time.Now().UnixMilli(),
		NodeCount: len(data.Nodes),
	}

	tx, err := d.conn.Begin()
	if err != nil {
		return "", fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO runs (id, location, created_at, node_count) VALUES (?, ?, ?, ?)`,
		run.ID, run.Location, run.CreatedAt, run.NodeCount,
	); err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}
	if err := insertNodes(tx, run.ID, data.Nodes); err != nil {
		return "", err
	}
	if err := insertRanges(tx, run.ID, data.Ranges); err != nil {
		return "", err
	}
	if err := insertStages(tx, run.ID, data.Stages); err != nil {
		return "", err
	}
	if err := insertOutputs(tx, run.ID, data.Outputs); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing run: %w", err)
	}
	return run.ID, nil
}

func insertNodes(tx *sql.Tx, runID string, nodes []Node) error {
	stmt, err := tx.Prepare(`
		INSERT INTO nodes (run_id, id, parent_id, step_kind, node_class, stage_label, branch_label)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing node insert: %w", err)
	}
	defer stmt.Close()
	for _, n := range nodes {
		if _, err := stmt.Exec(runID, n.ID, n.ParentID, n.StepKind, n.NodeClass, n.StageLabel, n.BranchLabel); err != nil {
			return fmt.Errorf("inserting node %d: %w", n.ID, err)
		}
	}
	return nil
}

func insertRanges(tx *sql.Tx, runID string, ranges []Range) error {
	stmt, err := tx.Prepare(`INSERT INTO ranges (run_id, node_id, seq, start_offset, end_offset) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing range insert: %w", err)
	}
	defer stmt.Close()
	for _, r := range ranges {
		if _, err := stmt.Exec(runID, r.NodeID, r.Seq, r.Start, r.End); err != nil {
			return fmt.Errorf("inserting range %d of node %d: %w", r.Seq, r.NodeID, err)
		}
	}
	return nil
}

func insertStages(tx *sql.Tx, runID string, stages []Stage) error {
	stmt, err := tx.Prepare(`INSERT INTO stages (run_id, seq, label, branch, representative) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing stage insert: %w", err)
	}
	defer stmt.Close()
	for _, s := range stages {
		if _, err := stmt.Exec(runID, s.Seq, s.Label, s.Branch, s.Representative); err != nil {
			return fmt.Errorf("inserting stage %q: %w", s.Label, err)
		}
	}
	return nil
}

func insertOutputs(tx *sql.Tx, runID string, outputs []Output) error {
	stmt, err := tx.Prepare(`
		INSERT INTO outputs (run_id, path, kind, stage, branch, node_count, bytes)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing output insert: %w", err)
	}
	defer stmt.Close()
	for _, o := range outputs {
		if _, err := stmt.Exec(runID, o.Path, o.Kind, o.Stage, o.Branch, o.NodeCount, o.Bytes); err != nil {
			return fmt.Errorf("inserting output %s: %w", o.Path, err)
		}
	}
	return nil
}
