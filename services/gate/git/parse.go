// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package git

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/AleutianAI/testgate/services/gate/changes"
)

// lineCounts is the numstat entry of one path.
type lineCounts struct {
	added   int
	deleted int
}

// parseNumstat parses `git diff --numstat` output.
//
// Format: <added>\t<deleted>\t<path>. Binary files show "-" for both
// counts and are recorded as zero. Renamed paths are reported under their
// new name.
func parseNumstat(output string) (map[string]lineCounts, error) {
	counts := make(map[string]lineCounts)

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 3)
		if len(parts) < 3 {
			continue
		}
		added, _ := strconv.Atoi(parts[0])
		deleted, _ := strconv.Atoi(parts[1])
		counts[changes.NormalizePath(renamedPath(parts[2]))] = lineCounts{added: added, deleted: deleted}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("parsing numstat: %w", err)
	}
	return counts, nil
}

// renamedPath returns the destination of a numstat rename entry, either
// "old => new" or "dir/{old => new}/file". Other paths are returned as is.
func renamedPath(p string) string {
	open := strings.Index(p, "{")
	arrow := strings.Index(p, " => ")
	if arrow < 0 {
		return p
	}
	if open >= 0 && open < arrow {
		if end := strings.Index(p[arrow:], "}"); end >= 0 {
			end += arrow
			prefix := p[:open]
			suffix := p[end+1:]
			dest := p[arrow+len(" => ") : end]
			if dest == "" {
				// "{old => }" drops a directory level.
				suffix = strings.TrimPrefix(suffix, "/")
			}
			return prefix + dest + suffix
		}
	}
	return p[arrow+len(" => "):]
}

// nameStatus is one `git diff --name-status` entry.
type nameStatus struct {
	path       string
	changeType changes.ChangeType
}

// parseNameStatus parses `git diff --name-status` output.
//
// Format: <status>\t<path>, or <status>\t<old>\t<new> for renames and
// copies. Renames, copies and type changes are Modified under the new
// path. Unknown statuses are skipped.
func parseNameStatus(output string) ([]nameStatus, error) {
	var result []nameStatus

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) < 2 || parts[0] == "" {
			continue
		}

		status := parts[0][0]
		var ct changes.ChangeType
		switch status {
		case 'A':
			ct = changes.Added
		case 'M', 'T':
			ct = changes.Modified
		case 'D':
			ct = changes.Deleted
		case 'R', 'C':
			ct = changes.Modified
		default:
			continue
		}

		path := parts[1]
		if (status == 'R' || status == 'C') && len(parts) >= 3 {
			path = parts[2]
		}
		result = append(result, nameStatus{path: changes.NormalizePath(path), changeType: ct})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("parsing name-status: %w", err)
	}
	return result, nil
}

// mergeDiff joins name-status entries with their numstat line counts,
// keeping name-status order. Paths missing from numstat get zero counts.
func mergeDiff(numstat, nameStatusOut string) ([]changes.FileChange, error) {
	counts, err := parseNumstat(numstat)
	if err != nil {
		return nil, err
	}
	entries, err := parseNameStatus(nameStatusOut)
	if err != nil {
		return nil, err
	}

	result := make([]changes.FileChange, 0, len(entries))
	for _, e := range entries {
		c := counts[e.path]
		result = append(result, changes.FileChange{
			Path:         e.path,
			ChangeType:   e.changeType,
			LinesAdded:   c.added,
			LinesDeleted: c.deleted,
		})
	}
	return result, nil
}

// logEntry is one commit from `git log`.
type logEntry struct {
	id      string
	parents []string
	subject string
}

// logFormat separates hash, parents and subject with NUL bytes.
const logFormat = "--format=%H%x00%P%x00%s"

// parseLog parses `git log` output produced with logFormat.
func parseLog(output string) ([]logEntry, error) {
	var result []logEntry

	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\x00", 3)
		if len(parts) != 3 || parts[0] == "" {
			continue
		}
		result = append(result, logEntry{
			id:      parts[0],
			parents: strings.Fields(parts[1]),
			subject: parts[2],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("parsing log: %w", err)
	}
	return result, nil
}
