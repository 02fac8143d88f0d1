package db

// ListRuns returns all recorded runs, newest first
func (d *DB) ListRuns() ([]Run, error) {
	rows, err := d.conn.Query(`
		SELECT id, location, created_at, node_count
		FROM runs ORDER BY created_at DESC, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Location, &r.CreatedAt, &r.NodeCount); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// StagesForRun returns the stage and branch rows of a run in registration order
func (d *DB) StagesForRun(runID string) ([]Stage, error) {
	rows, err := d.conn.Query(`
		SELECT run_id, seq, label, branch, representative
		FROM stages WHERE run_id = ? ORDER BY seq
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stages []Stage
	for rows.Next() {
		var s Stage
		if err := rows.Scan(&s.RunID, &s.Seq, &s.Label, &s.Branch, &s.Representative); err != nil {
			return nil, err
		}
		stages = append(stages, s)
	}
	return stages, rows.Err()
}

// OutputsForRun returns the files produced for a run ordered by path
func (d *DB) OutputsForRun(runID string) ([]Output, error) {
	rows, err := d.conn.Query(`
		SELECT run_id, path, kind, stage, branch, node_count, bytes
		FROM outputs WHERE run_id = ? ORDER BY path
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var outputs []Output
	for rows.Next() {
		var o Output
		if err := rows.Scan(&o.RunID, &o.Path, &o.Kind, &o.Stage, &o.Branch, &o.NodeCount, &o.Bytes); err != nil {
			return nil, err
		}
		outputs = append(outputs, o)
	}
	return outputs, rows.Err()
}
