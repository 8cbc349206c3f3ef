package contextengine

import (
	"fmt"
	"strings"

	"github.com/docker/cv-index/internal/domain"
)

const noRelevantCodeStanza = "## Context Summary\n\nNo relevant code was found for this query. Ask the user to point at specific files or symbols, or broaden the query.\n"

// Render implements spec.md §4.6's formatting contract: Context Summary,
// Files in Context, Relevant Code, Code Relationships, or a distinct
// "no relevant code" stanza when the snapshot is empty.
func Render(snapshot domain.ContextSnapshot) string {
	if len(snapshot.Files) == 0 && len(snapshot.Symbols) == 0 {
		return noRelevantCodeStanza
	}

	var b strings.Builder

	fmt.Fprintf(&b, "## Context Summary\n\n%d file(s), %d symbol(s), %d relationship(s) — ~%d tokens\n\n",
		len(snapshot.Files), len(snapshot.Symbols), len(snapshot.Relationships), snapshot.TokenCount)

	if len(snapshot.Files) > 0 {
		b.WriteString("## Files in Context\n\n")
		for _, f := range snapshot.Files {
			fmt.Fprintf(&b, "### %s\n\n```%s\n%s\n```\n\n", f.Path, fenceLanguage(f.Path), f.Content)
		}
	}

	if len(snapshot.Symbols) > 0 {
		b.WriteString("## Relevant Code\n\n")
		for _, s := range snapshot.Symbols {
			fmt.Fprintf(&b, "#### %s (%s) — %s:%d\n\n```\n%s\n```\n\n",
				s.Symbol.QualifiedName, s.Symbol.Kind, s.Symbol.File, s.Symbol.StartLine, s.Code)
		}
	}

	if len(snapshot.Relationships) > 0 {
		b.WriteString("## Code Relationships\n\n")
		for _, r := range snapshot.Relationships {
			fmt.Fprintf(&b, "%s --[%s]--> %s\n", r.From, r.Type, r.To)
		}
		b.WriteString("\n")
	}

	return b.String()
}

func fenceLanguage(path string) string {
	for _, ext := range []string{".go", ".ts", ".tsx", ".js", ".jsx", ".py", ".rs", ".md"} {
		if strings.HasSuffix(path, ext) {
			return strings.TrimPrefix(ext, ".")
		}
	}
	return ""
}
