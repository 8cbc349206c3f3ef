package parser

import (
	"strings"
	"unicode"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/docker/cv-index/internal/domain"
)

func nodeText(content []byte, n *sitter.Node) string {
	if n == nil {
		return ""
	}
	start, end := n.StartByte(), n.EndByte()
	if end <= start || int(end) > len(content) {
		return ""
	}
	return string(content[start:end])
}

func fieldText(content []byte, n *sitter.Node, field string) string {
	return nodeText(content, n.ChildByFieldName(field))
}

// signatureText is the parameter list and return type as text up to (but
// excluding) the body delimiter (spec.md §4.1). When the grammar exposes a
// "body" field we slice up to its start byte; otherwise we fall back to
// the teacher's textual "{"/newline heuristic
// (pkg/rag/treesitter/treesitter.go's buildGoSignature).
func signatureText(content []byte, fn, body *sitter.Node) string {
	text := nodeText(content, fn)
	if body != nil {
		start, bodyStart := fn.StartByte(), body.StartByte()
		if bodyStart > start && int(bodyStart) <= len(content) {
			text = string(content[start:bodyStart])
		}
	}
	text = strings.TrimSpace(text)
	if body == nil {
		if i := strings.IndexAny(text, "{:"); i != -1 {
			text = strings.TrimSpace(text[:i])
		}
	}
	if i := strings.IndexByte(text, '\n'); i != -1 {
		text = strings.TrimSpace(text[:i])
	}
	return truncate(text, 240)
}

// precedingComment walks backward through sibling nodes collecting a
// contiguous run of comment nodes immediately before n, trimmed (spec.md
// §4.1). Grounded on treesitter.go's findPrecedingComments, generalized
// over a per-language comment-node-type set.
func precedingComment(content []byte, n *sitter.Node, commentKinds map[string]bool) string {
	parent := n.Parent()
	if parent == nil {
		return ""
	}

	idx := -1
	for i := range int(parent.ChildCount()) {
		if parent.Child(i) == n {
			idx = i
			break
		}
	}
	if idx <= 0 {
		return ""
	}

	var comments []*sitter.Node
	for i := idx - 1; i >= 0; i-- {
		sib := parent.Child(i)
		if sib == nil {
			break
		}
		if commentKinds[sib.Type()] {
			comments = append([]*sitter.Node{sib}, comments...)
			continue
		}
		if strings.TrimSpace(nodeText(content, sib)) != "" {
			break
		}
	}
	if len(comments) == 0 {
		return ""
	}

	last := comments[len(comments)-1]
	gap := string(content[last.EndByte():n.StartByte()])
	if strings.Count(gap, "\n") > 2 {
		return ""
	}

	var sb strings.Builder
	for i, c := range comments {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(cleanCommentMarkers(strings.TrimSpace(nodeText(content, c))))
	}
	return truncate(strings.TrimSpace(sb.String()), 400)
}

// cleanCommentMarkers strips the language-specific comment delimiters
// ("//", "#", "/* */", "/** */") and leading "*" line continuations so
// docstrings read as prose rather than raw comment syntax.
func cleanCommentMarkers(s string) string {
	s = strings.TrimPrefix(s, "/**")
	s = strings.TrimPrefix(s, "/*!")
	s = strings.TrimPrefix(s, "/*")
	s = strings.TrimSuffix(s, "*/")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "///")
		line = strings.TrimPrefix(line, "//")
		line = strings.TrimPrefix(line, "#")
		line = strings.TrimPrefix(line, "*")
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// visibilityOf implements spec.md §4.1's per-language visibility rule.
func visibilityOf(name, signatureOrText string, privatePrefix bool) domain.Visibility {
	if privatePrefix {
		if strings.HasPrefix(name, "_") {
			return domain.VisibilityPrivate
		}
		return domain.VisibilityPublic
	}
	r := []rune(name)
	if len(r) == 0 {
		return domain.VisibilityPublic
	}
	if unicode.IsUpper(r[0]) {
		return domain.VisibilityPublic
	}
	return domain.VisibilityPrivate
}

// complexityOf counts branching nodes inside body and adds the spec.md
// §4.1 baseline of 1 ("Minimum 1"), matching the example in spec.md §8
// Scenario A: a single `if` inside the body yields complexity 2.
func complexityOf(fn *sitter.Node, branchKinds map[string]bool) int {
	complexity := 1
	var walk func(*sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		if branchKinds[n.Type()] {
			complexity++
		}
		for i := range int(n.ChildCount()) {
			walk(n.Child(i))
		}
	}
	walk(fn)
	return complexity
}

// collectCalls gathers callee names textually referenced within body,
// flagging a call isConditional if a branching/conditional ancestor
// (within the function) sits between the call node and fn (spec.md §4.1:
// "A call inside an if/switch/ternary is flagged isConditional").
func collectCalls(content []byte, body, fn *sitter.Node, callerQualified string, spec *langSpec) []domain.Call {
	var calls []domain.Call
	var walk func(n *sitter.Node, conditional bool)
	walk = func(n *sitter.Node, conditional bool) {
		if n == nil {
			return
		}
		cond := conditional || spec.conditionalAncestorKinds[n.Type()]
		if spec.callKinds[n.Type()] {
			if callee := calleeName(content, n); callee != "" {
				calls = append(calls, domain.Call{
					Caller:        callerQualified,
					Callee:        callee,
					IsConditional: cond,
				})
			}
		}
		for i := range int(n.ChildCount()) {
			walk(n.Child(i), cond)
		}
	}
	walk(body, false)
	return calls
}

// calleeName extracts the final field name of a call expression's callee,
// per spec.md §4.1: "nested selector expressions record only the final
// field name".
func calleeName(content []byte, call *sitter.Node) string {
	fn := call.ChildByFieldName("function")
	if fn == nil {
		fn = call.Child(0)
	}
	if fn == nil {
		return ""
	}
	text := nodeText(content, fn)
	if i := strings.LastIndexAny(text, ".:"); i != -1 {
		text = text[i+1:]
	}
	text = strings.TrimSpace(text)
	if text == "" || strings.ContainsAny(text, "()") {
		return ""
	}
	return text
}

// importFrom extracts a best-effort Import record from one import node;
// the exact field layout differs per grammar, so we fall back to scanning
// the node's own text for a quoted module path when no "source"/"path"
// field is present.
func importFrom(content []byte, n *sitter.Node, spec *langSpec) domain.Import {
	source := fieldText(content, n, "source")
	if source == "" {
		source = fieldText(content, n, "path")
	}
	if source == "" {
		text := nodeText(content, n)
		if i := strings.IndexAny(text, "\"'"); i != -1 {
			quote := text[i]
			if j := strings.IndexByte(text[i+1:], quote); j != -1 {
				source = text[i+1 : i+1+j]
			}
		}
	}
	source = strings.Trim(strings.TrimSpace(source), "\"'")

	return domain.Import{
		Source:     source,
		IsExternal: isExternalImport(spec.name, source),
	}
}

func isExternalImport(lang, source string) bool {
	if source == "" {
		return false
	}
	switch lang {
	case "python":
		return !strings.HasPrefix(source, ".")
	case "typescript":
		return !strings.HasPrefix(source, ".") && !strings.HasPrefix(source, "/")
	case "rust":
		return !strings.HasPrefix(source, "crate::") && !strings.HasPrefix(source, "self::") && !strings.HasPrefix(source, "super::")
	default: // go: stdlib/external both look like "a/b"; treat the absence of a
		// relative "./" prefix and presence of a dot in the first path
		// segment as a third-party module path.
		first := source
		if i := strings.IndexByte(source, '/'); i != -1 {
			first = source[:i]
		}
		return !strings.HasPrefix(source, ".") && strings.ContainsRune(first, '.')
	}
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
