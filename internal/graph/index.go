package graph

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

type indexLine struct {
	num     int
	raw     string
	offset  int64
	nodeID  int
	hasNode bool
}

// LoadIndex parses a log-index and appends the ranges it describes to the
// nodes of reg. A line "<offset> <node>" opens a range, the following line
// closes it. When the closing line opens a range itself the scan moves by one
// line, otherwise by two.
func LoadIndex(r io.Reader, reg *Registry) error {
	lines, err := readIndexLines(r)
	if err != nil {
		return err
	}

	i := 0
	for i < len(lines) {
		open := lines[i]
		if !open.hasNode {
			return &MalformedIndexError{Line: open.num, Content: open.raw, Reason: "expected an offset and a node id"}
		}
		node := reg.Get(open.nodeID)
		if node == nil {
			return &MalformedIndexError{Line: open.num, Content: open.raw, NodeID: open.nodeID, Reason: "unknown node id"}
		}
		if i+1 >= len(lines) {
			return &MalformedIndexError{Line: open.num, Content: open.raw, NodeID: open.nodeID, Reason: "range is never closed"}
		}
		end := lines[i+1]
		if end.offset < open.offset {
			return &MalformedIndexError{Line: end.num, Content: end.raw, NodeID: open.nodeID,
				Reason: fmt.Sprintf("end offset %d is before start offset %d", end.offset, open.offset)}
		}
		node.AddRange(open.offset, end.offset)

		if end.hasNode {
			i++
		} else {
			i += 2
		}
	}
	return nil
}

func readIndexLines(r io.Reader) ([]indexLine, error) {
	var lines []indexLine
	scanner := bufio.NewScanner(r)
	num := 0
	for scanner.Scan() {
		num++
		raw := scanner.Text()
		fields := strings.Fields(raw)
		if len(fields) == 0 {
			continue
		}
		if len(fields) > 2 {
			return nil, &MalformedIndexError{Line: num, Content: raw, Reason: "too many fields"}
		}
		offset, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil || offset < 0 {
			return nil, &MalformedIndexError{Line: num, Content: raw, Reason: "offset is not a non-negative integer"}
		}
		line := indexLine{num: num, raw: raw, offset: offset}
		if len(fields) == 2 {
			id, err := ParseNodeID(fields[1], fmt.Sprintf("log-index line %d", num))
			if err != nil {
				return nil, &MalformedIndexError{Line: num, Content: raw, Reason: err.Error()}
			}
			line.nodeID = id
			line.hasNode = true
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading log-index: %w", err)
	}
	return lines, nil
}
