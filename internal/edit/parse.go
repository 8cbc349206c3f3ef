// Package edit is the Edit Parser (spec.md §4.7): it turns one LLM
// response into a slice of domain.Edit by scanning fenced code blocks
// whose opening fence carries a path-like label. No teacher file parses
// this exact protocol; the scanning/classification shape (small, focused
// functions, regexp-driven block extraction) follows
// pkg/fsx/collect.go's line-oriented tree walking in spirit.
package edit

import (
	"bufio"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/docker/cv-index/internal/domain"
)

var (
	renameLabelRe   = regexp.MustCompile(`^(\S+)\s*(?:→|->)\s*(\S+)$`)
	searchReplaceRe = regexp.MustCompile(`(?s)<<<<<<< SEARCH\r?\n(.*?)\r?\n=======\r?\n(.*?)\r?\n>>>>>>> REPLACE`)
	deleteSentinel  = regexp.MustCompile(`^\s*<<<<<<< DELETE\s*\n\s*>>>>>>> DELETE\s*$`)
)

// ParseResponse scans response for fenced blocks with a path-like label
// and returns the Edits found, stamped with messageID and a fresh id,
// status, and createdAt (spec.md §4.7).
func ParseResponse(response, messageID string) []domain.Edit {
	var edits []domain.Edit
	now := time.Now().UTC()

	forEachLabeledBlock(response, func(label, body string) {
		if m := renameLabelRe.FindStringSubmatch(label); m != nil {
			edits = append(edits, domain.Edit{
				ID:        uuid.NewString(),
				File:      m[1],
				Type:      domain.EditRename,
				NewPath:   m[2],
				Status:    domain.StatusPending,
				MessageID: messageID,
				CreatedAt: now,
			})
			return
		}

		e := domain.Edit{
			ID:        uuid.NewString(),
			File:      label,
			Status:    domain.StatusPending,
			MessageID: messageID,
			CreatedAt: now,
		}

		switch {
		case deleteSentinel.MatchString(body):
			e.Type = domain.EditDelete
		default:
			if blocks := parseSearchReplaceBlocks(body); len(blocks) > 0 {
				e.Type = domain.EditModify
				e.SearchReplaceBlocks = blocks
			} else {
				e.Type = domain.EditCreate
				e.NewContent = body
			}
		}

		edits = append(edits, e)
	})

	return edits
}

// forEachLabeledBlock scans response line by line for fenced blocks
// (``` opening fence followed by a path-like label, closed by a lone
// ``` line) and invokes fn with the label and the raw body text.
func forEachLabeledBlock(response string, fn func(label, body string)) {
	scanner := bufio.NewScanner(strings.NewReader(response))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		label, ok := fenceLabel(line)
		if !ok {
			continue
		}
		if !isPathLabel(label) && renameLabelRe.FindStringSubmatch(label) == nil {
			continue
		}

		var body []string
		closed := false
		for scanner.Scan() {
			bodyLine := scanner.Text()
			if strings.TrimSpace(bodyLine) == "```" {
				closed = true
				break
			}
			body = append(body, bodyLine)
		}
		if !closed {
			return
		}
		fn(label, strings.Join(body, "\n"))
	}
}

func fenceLabel(line string) (string, bool) {
	if !strings.HasPrefix(line, "```") {
		return "", false
	}
	label := strings.TrimSpace(strings.TrimPrefix(line, "```"))
	if label == "" {
		return "", false
	}
	return label, true
}

// isPathLabel matches a repo-relative path (contains a slash) or a single
// token ending in an extension (spec.md §4.7).
func isPathLabel(label string) bool {
	if strings.ContainsAny(label, " \t") {
		return false
	}
	if strings.Contains(label, "/") {
		return true
	}
	dot := strings.LastIndex(label, ".")
	return dot > 0 && dot < len(label)-1
}

func parseSearchReplaceBlocks(body string) []domain.SearchReplaceBlock {
	matches := searchReplaceRe.FindAllStringSubmatch(body, -1)
	if len(matches) == 0 {
		return nil
	}
	blocks := make([]domain.SearchReplaceBlock, 0, len(matches))
	for _, m := range matches {
		blocks = append(blocks, domain.SearchReplaceBlock{Search: m[1], Replace: m[2]})
	}
	return blocks
}
