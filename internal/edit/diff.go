package edit

import (
	"strings"

	"github.com/docker/cv-index/internal/domain"
)

// DiffLineKind tags one rendered diff line.
type DiffLineKind string

const (
	DiffContext DiffLineKind = "context"
	DiffAdd     DiffLineKind = "add"
	DiffRemove  DiffLineKind = "remove"
)

// DiffLine is one line of a rendered Hunk.
type DiffLine struct {
	Kind DiffLineKind
	Text string
}

// Hunk is one unified-diff hunk (spec.md §4.7's diff rendering contract).
type Hunk struct {
	File      string
	StartLine int
	Lines     []DiffLine
}

// Render dispatches on e.Type to the matching hunk renderer. currentContent
// is the file's content before the edit; it is ignored for create.
func Render(e domain.Edit, currentContent string) []Hunk {
	switch e.Type {
	case domain.EditCreate:
		return RenderCreate(e.File, e.NewContent)
	case domain.EditDelete:
		return RenderDelete(e.File, currentContent)
	case domain.EditModify:
		return RenderModify(e.File, currentContent, e.SearchReplaceBlocks)
	default:
		return nil
	}
}

// RenderCreate renders a create Edit as one all-add hunk.
func RenderCreate(file, newContent string) []Hunk {
	return []Hunk{{File: file, StartLine: 1, Lines: linesOf(newContent, DiffAdd)}}
}

// RenderDelete renders a delete Edit as one all-remove hunk over the
// file's current content.
func RenderDelete(file, currentContent string) []Hunk {
	return []Hunk{{File: file, StartLine: 1, Lines: linesOf(currentContent, DiffRemove)}}
}

// RenderModify renders a modify Edit as one hunk per SearchReplaceBlock,
// with 1 line of surrounding context above/below where available and
// startLine computed from the byte offset of Search in currentContent
// (spec.md §4.7).
func RenderModify(file, currentContent string, blocks []domain.SearchReplaceBlock) []Hunk {
	fileLines := strings.Split(currentContent, "\n")
	hunks := make([]Hunk, 0, len(blocks))

	for _, b := range blocks {
		startLine := 1
		if idx := strings.Index(currentContent, b.Search); idx >= 0 {
			startLine = strings.Count(currentContent[:idx], "\n") + 1
		}

		searchLines := strings.Split(b.Search, "\n")
		endLine := startLine + len(searchLines) - 1

		var hunkLines []DiffLine
		if ctx, ok := fileLine(fileLines, startLine-1); ok {
			hunkLines = append(hunkLines, DiffLine{Kind: DiffContext, Text: ctx})
		}
		for _, l := range searchLines {
			hunkLines = append(hunkLines, DiffLine{Kind: DiffRemove, Text: l})
		}
		for _, l := range strings.Split(b.Replace, "\n") {
			hunkLines = append(hunkLines, DiffLine{Kind: DiffAdd, Text: l})
		}
		if ctx, ok := fileLine(fileLines, endLine+1); ok {
			hunkLines = append(hunkLines, DiffLine{Kind: DiffContext, Text: ctx})
		}

		hunks = append(hunks, Hunk{File: file, StartLine: startLine, Lines: hunkLines})
	}

	return hunks
}

func fileLine(lines []string, lineNo int) (string, bool) {
	if lineNo < 1 || lineNo > len(lines) {
		return "", false
	}
	return lines[lineNo-1], true
}

func linesOf(content string, kind DiffLineKind) []DiffLine {
	split := strings.Split(content, "\n")
	out := make([]DiffLine, len(split))
	for i, l := range split {
		out[i] = DiffLine{Kind: kind, Text: l}
	}
	return out
}
