package db

// scanNode scans a row into a Node. The row must have all 7 columns in standard order.
func scanNode(scanner interface{ Scan(dest ...any) error }) (Node, error) {
	var n Node
	err := scanner.Scan(
		&n.RunID, &n.ID, &n.ParentID, &n.StepKind,
		&n.NodeClass, &n.StageLabel, &n.BranchLabel,
	)
	return n, err
}

// AllNodes returns all nodes of a run ordered by id
func (d *DB) AllNodes(runID string) ([]Node, error) {
	rows, err := d.conn.Query(`
		SELECT run_id, id, parent_id, step_kind, node_class, stage_label, branch_label
		FROM nodes WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nodes []Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// GetNode returns a single node of a run
func (d *DB) GetNode(runID string, id int) (*Node, error) {
	row := d.conn.QueryRow(`
		SELECT run_id, id, parent_id, step_kind, node_class, stage_label, branch_label
		FROM nodes WHERE run_id = ? AND id = ?
	`, runID, id)

	n, err := scanNode(row)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// RangesForRun returns every byte range of a run ordered by node and position
func (d *DB) RangesForRun(runID string) ([]Range, error) {
	rows, err := d.conn.Query(`
		SELECT run_id, node_id, seq, start_offset, end_offset
		FROM ranges WHERE run_id = ? ORDER BY node_id, seq
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ranges []Range
	for rows.Next() {
		var r Range
		if err := rows.Scan(&r.RunID, &r.NodeID, &r.Seq, &r.Start, &r.End); err != nil {
			return nil, err
		}
		ranges = append(ranges, r)
	}
	return ranges, rows.Err()
}
