package gitingest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/avolkov/codetwin/internal/models"
)

// parseCommitMeta decodes one commit rendered with commitFormat.
func parseCommitMeta(raw string) (*models.GitCommitRecord, error) {
	fields := strings.SplitN(strings.TrimRight(raw, "\n"), "\x1f", 8)
	if len(fields) < 7 {
		return nil, fmt.Errorf("malformed commit metadata: %q", raw)
	}
	parents := 0
	if p := strings.TrimSpace(fields[1]); p != "" {
		parents = len(strings.Fields(p))
	}
	record := &models.GitCommitRecord{
		SHA:         fields[0],
		ParentCount: parents,
		AuthoredAt:  fields[2],
		CommittedAt: fields[3],
		AuthorName:  fields[4],
		AuthorEmail: strings.ToLower(strings.TrimSpace(fields[5])),
		Subject:     fields[6],
		IsMerge:     parents > 1,
	}
	if len(fields) == 8 {
		record.Body = strings.TrimSpace(fields[7])
	}
	return record, nil
}

type diffStat struct {
	additions int
	deletions int
}

// parseNumstat reads "adds<TAB>dels<TAB>path" lines. Binary files report
// "-" for both counts and come through as zero. Rename paths of the form
// "a/{old => new}/b" or "old => new" are normalized to the new path.
func parseNumstat(out string) map[string]diffStat {
	stats := make(map[string]diffStat)
	for _, line := range strings.Split(out, "\n") {
		parts := strings.SplitN(strings.TrimRight(line, "\r"), "\t", 3)
		if len(parts) != 3 {
			continue
		}
		additions, _ := strconv.Atoi(parts[0])
		deletions, _ := strconv.Atoi(parts[1])
		path := normalizeRenamePath(parts[2])
		stats[path] = diffStat{additions: additions, deletions: deletions}
	}
	return stats
}

// parseNameStatus reads "STATUS<TAB>path" lines; rename and copy lines
// carry "R<score><TAB>old<TAB>new" and are keyed by the new path.
func parseNameStatus(out string) map[string]string {
	statuses := make(map[string]string)
	for _, line := range strings.Split(out, "\n") {
		parts := strings.Split(strings.TrimRight(line, "\r"), "\t")
		if len(parts) < 2 || parts[0] == "" {
			continue
		}
		status := string(parts[0][0])
		path := parts[1]
		if (status == "R" || status == "C") && len(parts) >= 3 {
			path = parts[2]
		}
		statuses[path] = status
	}
	return statuses
}

// mergeDiffStats joins the two diff views: name-status decides the
// change type, numstat contributes line counts. A path only seen in
// numstat falls back to modified.
func mergeDiffStats(numstat map[string]diffStat, nameStatus map[string]string) []models.GitFileChange {
	paths := make(map[string]struct{}, len(numstat)+len(nameStatus))
	for p := range numstat {
		paths[p] = struct{}{}
	}
	for p := range nameStatus {
		paths[p] = struct{}{}
	}

	changes := make([]models.GitFileChange, 0, len(paths))
	for path := range paths {
		change := models.GitFileChange{Path: path, ChangeType: "M"}
		if status, ok := nameStatus[path]; ok {
			change.ChangeType = status
		}
		if stat, ok := numstat[path]; ok {
			change.Additions = stat.additions
			change.Deletions = stat.deletions
		}
		changes = append(changes, change)
	}
	return changes
}

// normalizeRenamePath collapses git's rename notation to the post-rename
// path: "src/{old => new}/f.py" becomes "src/new/f.py" and a bare
// "old => new" becomes "new".
func normalizeRenamePath(path string) string {
	if !strings.Contains(path, " => ") {
		return path
	}
	start := strings.Index(path, "{")
	end := strings.Index(path, "}")
	if start >= 0 && end > start {
		inner := path[start+1 : end]
		parts := strings.SplitN(inner, " => ", 2)
		newInner := inner
		if len(parts) == 2 {
			newInner = parts[1]
		}
		collapsed := path[:start] + newInner + path[end+1:]
		return strings.ReplaceAll(collapsed, "//", "/")
	}
	parts := strings.SplitN(path, " => ", 2)
	return parts[1]
}
