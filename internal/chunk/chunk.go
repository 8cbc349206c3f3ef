// Package chunk is the Chunker (spec.md §4.2): it turns a ParsedFile into
// embedding-sized Chunks with deterministic ids. One Chunk per Symbol when
// symbols were extracted; otherwise a paragraph-first text splitter for
// non-code files, grounded on pkg/rag/chunk/chunk.go's word-boundary
// splitter (adapted here to split on blank lines first, falling through to
// size-based splitting only for very long paragraphs, per spec.md §4.2).
package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/docker/cv-index/internal/domain"
)

// Options configures the fallback paragraph splitter (spec.md §4.2: target
// 400-1500 characters, never split inside a line).
type Options struct {
	MinChars int
	MaxChars int
}

// DefaultOptions matches spec.md §4.2's stated target window.
func DefaultOptions() Options {
	return Options{MinChars: 400, MaxChars: 1500}
}

// FromParsedFile produces one Chunk per Symbol in pf, covering
// StartLine..EndLine with text sliced from the original source lines.
func FromParsedFile(pf domain.ParsedFile, content []byte) []domain.Chunk {
	if len(pf.Symbols) == 0 {
		return nil
	}

	lines := splitLines(content)
	chunks := make([]domain.Chunk, 0, len(pf.Symbols))
	for _, sym := range pf.Symbols {
		text := sliceLines(lines, sym.StartLine, sym.EndLine)
		chunks = append(chunks, domain.Chunk{
			ID:         ID(pf.Path, sym.StartLine, sym.EndLine, text),
			File:       pf.Path,
			SymbolName: sym.Name,
			StartLine:  sym.StartLine,
			EndLine:    sym.EndLine,
			Text:       text,
			Language:   pf.Language,
			Docstring:  sym.Docstring,
		})
	}
	return chunks
}

// FromPlainText implements the spec.md §4.2 fallback for files with no
// extractable Symbols: split on blank-line paragraph boundaries, and only
// fall through to size-based splitting for a paragraph longer than
// opts.MaxChars. No split ever occurs inside a line.
func FromPlainText(path, language string, content []byte, opts Options) []domain.Chunk {
	if opts.MaxChars <= 0 {
		opts = DefaultOptions()
	}

	lines := splitLines(content)
	paragraphs := paragraphRanges(lines)

	var chunks []domain.Chunk
	var buf strings.Builder
	bufStart := 1

	flush := func(endLine int) {
		text := strings.TrimSpace(buf.String())
		if text == "" {
			buf.Reset()
			return
		}
		chunks = append(chunks, domain.Chunk{
			ID:        ID(path, bufStart, endLine, text),
			File:      path,
			StartLine: bufStart,
			EndLine:   endLine,
			Text:      text,
			Language:  language,
		})
		buf.Reset()
	}

	for _, p := range paragraphs {
		paraText := strings.Join(lines[p.start-1:p.end], "\n")

		if len(paraText) > opts.MaxChars {
			// Flush whatever is pending, then size-split this long
			// paragraph on its own, never crossing a line boundary.
			flush(p.start - 1)
			for _, sub := range splitBySize(lines[p.start-1:p.end], p.start, opts.MaxChars) {
				chunks = append(chunks, domain.Chunk{
					ID:        ID(path, sub.startLine, sub.endLine, sub.text),
					File:      path,
					StartLine: sub.startLine,
					EndLine:   sub.endLine,
					Text:      sub.text,
					Language:  language,
				})
			}
			bufStart = p.end + 1
			continue
		}

		if buf.Len() > 0 && buf.Len()+len(paraText) > opts.MaxChars && buf.Len() >= opts.MinChars {
			flush(p.start - 1)
			bufStart = p.start
		}
		if buf.Len() == 0 {
			bufStart = p.start
		} else {
			buf.WriteString("\n\n")
		}
		buf.WriteString(paraText)
	}
	flush(len(lines))
	return chunks
}

type lineRange struct{ start, end int }

// paragraphRanges groups 1-indexed line numbers into contiguous
// non-blank runs separated by one or more blank lines.
func paragraphRanges(lines []string) []lineRange {
	var ranges []lineRange
	start := 0
	for i, line := range lines {
		blank := strings.TrimSpace(line) == ""
		if !blank && start == 0 {
			start = i + 1
		}
		if blank && start != 0 {
			ranges = append(ranges, lineRange{start: start, end: i})
			start = 0
		}
	}
	if start != 0 {
		ranges = append(ranges, lineRange{start: start, end: len(lines)})
	}
	return ranges
}

type sizedChunk struct {
	startLine, endLine int
	text               string
}

// splitBySize splits a paragraph's lines into MaxChars-sized groups
// without ever breaking inside a single line.
func splitBySize(lines []string, firstLineNo, maxChars int) []sizedChunk {
	var out []sizedChunk
	var buf strings.Builder
	bufStart := firstLineNo

	for i, line := range lines {
		lineNo := firstLineNo + i
		if buf.Len() > 0 && buf.Len()+len(line) > maxChars {
			out = append(out, sizedChunk{startLine: bufStart, endLine: lineNo - 1, text: strings.TrimSpace(buf.String())})
			buf.Reset()
			bufStart = lineNo
		}
		if buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(line)
	}
	if buf.Len() > 0 {
		out = append(out, sizedChunk{startLine: bufStart, endLine: firstLineNo + len(lines) - 1, text: strings.TrimSpace(buf.String())})
	}
	return out
}

func splitLines(content []byte) []string {
	return strings.Split(string(content), "\n")
}

func sliceLines(lines []string, start, end int) string {
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end || start > len(lines) {
		return ""
	}
	return strings.Join(lines[start-1:end], "\n")
}

// ID computes a deterministic chunk id: a hex digest (>= 96 bits, spec.md
// §4.2) of path || startLine || endLine || text, so re-indexing an
// unchanged file produces identical ids (spec.md §3's idempotency
// invariant, verified by spec.md §8 property 3).
func ID(path string, startLine, endLine int, text string) string {
	h := sha256.New()
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(startLine)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(endLine)))
	h.Write([]byte{0})
	h.Write([]byte(text))
	sum := h.Sum(nil)
	// 96 bits = 12 bytes; the full sha256 digest is kept so ids remain
	// collision-resistant while still exceeding the spec's floor.
	return hex.EncodeToString(sum)
}
