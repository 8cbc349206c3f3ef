package parser

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/docker/cv-index/internal/domain"
)

// langSpec captures everything that differs between language front-ends so
// the tree-walking algorithm itself (below) is written once, the way
// pkg/rag/treesitter/treesitter.go's author noted their single-language
// implementation was "intentionally generic so we can add more languages
// incrementally" — this is that generalization.
type langSpec struct {
	name       string
	extensions []string
	grammar    *sitter.Language

	// functionKinds maps a tree-sitter node type to the Symbol kind it
	// produces when the node is a callable (function or method).
	functionKinds map[string]domain.SymbolKind
	// containerKinds maps a tree-sitter node type to the Symbol kind for
	// type-level declarations (class/struct/interface/enum/type/trait).
	containerKinds map[string]domain.SymbolKind
	// commentKinds lists the node types treated as a doc comment.
	commentKinds map[string]bool
	// branchKinds lists node types that count toward complexity.
	branchKinds map[string]bool
	// callKinds lists node types that represent a call expression.
	callKinds map[string]bool
	// conditionalAncestorKinds lists node types that, if found between a
	// call and its enclosing function, flag the call isConditional.
	conditionalAncestorKinds map[string]bool
	// importKinds lists node types that represent one import statement.
	importKinds map[string]bool

	// implKinds lists "transparent" container node types (e.g. Rust's
	// impl_item) that establish an enclosing receiver name for their
	// methods without themselves producing a container Symbol.
	implKinds map[string]bool
	// implNameField is the field holding the implementing type's name on
	// an implKinds node (e.g. "type" for Rust's impl_item).
	implNameField string

	// privatePrefixVisibility is true for languages where a leading "_"
	// marks a private declaration (Python/JS/TS); false for languages
	// where leading-case marks it (Go).
	privatePrefixVisibility bool
}

// tsParser is a LanguageParser backed by one langSpec (spec.md §4.1).
type tsParser struct {
	spec langSpec
}

func (p *tsParser) Language() string            { return p.spec.name }
func (p *tsParser) SupportedExtensions() []string { return p.spec.extensions }

// Parse implements LanguageParser. A new *sitter.Parser is created per
// call: the underlying tree-sitter C library is not safe to share across
// goroutines, matching the teacher's own per-call parser allocation.
func (p *tsParser) Parse(path string, content []byte) (domain.ParsedFile, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(p.spec.grammar)

	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil || tree == nil || tree.RootNode() == nil {
		return domain.ParsedFile{}, errParseFailed(path, err)
	}
	root := tree.RootNode()

	w := &walker{spec: &p.spec, content: content, path: path}
	w.walk(root, nil)
	w.collectImports(root)

	return domain.ParsedFile{
		Path:     path,
		Language: p.spec.name,
		Symbols:  w.symbols,
		Imports:  w.imports,
		Calls:    w.calls,
	}, nil
}

type walker struct {
	spec    *langSpec
	content []byte
	path    string

	symbols []domain.Symbol
	imports []domain.Import
	calls   []domain.Call
}

// walk descends the tree, emitting one Symbol per matched function or
// container node. enclosing is the name of the nearest enclosing container,
// impl block or function, used to build qualifiedName for methods (spec.md
// §4.1: "receiver present for methods"). A function nested inside another
// function is therefore qualified as outer.inner and given KindMethod.
func (w *walker) walk(n *sitter.Node, enclosing *string) {
	if n == nil {
		return
	}

	nodeType := n.Type()

	if kind, ok := w.spec.functionKinds[nodeType]; ok {
		w.emitFunction(n, kind, enclosing)
		// Descend into the body only to find nested functions/closures;
		// calls/complexity for this function were already computed from
		// its own subtree in emitFunction.
		name := strings.TrimSpace(fieldText(w.content, n, "name"))
		for i := range int(n.ChildCount()) {
			w.walk(n.Child(i), &name)
		}
		return
	}

	if kind, ok := w.spec.containerKinds[nodeType]; ok {
		w.emitContainer(n, kind)
		name := strings.TrimSpace(fieldText(w.content, n, "name"))
		for i := range int(n.ChildCount()) {
			w.walk(n.Child(i), &name)
		}
		return
	}

	if w.spec.implKinds[nodeType] {
		name := strings.TrimSpace(fieldText(w.content, n, w.spec.implNameField))
		name = strings.TrimPrefix(name, "&")
		for i := range int(n.ChildCount()) {
			w.walk(n.Child(i), &name)
		}
		return
	}

	for i := range int(n.ChildCount()) {
		w.walk(n.Child(i), enclosing)
	}
}

func (w *walker) emitFunction(n *sitter.Node, kind domain.SymbolKind, enclosing *string) {
	name := strings.TrimSpace(fieldText(w.content, n, "name"))
	if name == "" {
		return
	}

	receiver := w.receiverName(n, enclosing)
	qualified := w.path + ":" + name
	if receiver != "" {
		qualified = w.path + ":" + receiver + "." + name
		kind = domain.KindMethod
	}

	body := n.ChildByFieldName("body")
	sig := signatureText(w.content, n, body)
	doc := precedingComment(w.content, n, w.spec.commentKinds)

	sym := domain.Symbol{
		QualifiedName: qualified,
		Name:          name,
		Kind:          kind,
		File:          w.path,
		StartLine:     int(n.StartPoint().Row) + 1,
		EndLine:       int(n.EndPoint().Row) + 1,
		Signature:     sig,
		Docstring:     doc,
		Visibility:    visibilityOf(name, sig, w.spec.privatePrefixVisibility),
		IsAsync:       strings.HasPrefix(strings.TrimSpace(sig), "async"),
		Complexity:    complexityOf(n, w.spec.branchKinds),
	}
	w.symbols = append(w.symbols, sym)

	bodyNode := body
	if bodyNode == nil {
		bodyNode = n
	}
	w.calls = append(w.calls, collectCalls(w.content, bodyNode, n, qualified, w.spec)...)
}

func (w *walker) emitContainer(n *sitter.Node, kind domain.SymbolKind) {
	name := strings.TrimSpace(fieldText(w.content, n, "name"))
	if name == "" {
		return
	}

	// Go's type_declaration wraps a type_spec whose own "type" field
	// distinguishes struct/interface/alias; refine the generic "type" kind
	// using it when present.
	if typeField := n.ChildByFieldName("type"); typeField != nil {
		switch typeField.Type() {
		case "struct_type":
			kind = domain.KindStruct
		case "interface_type":
			kind = domain.KindInterface
		}
	}

	qualified := w.path + ":" + name
	doc := precedingComment(w.content, n, w.spec.commentKinds)

	w.symbols = append(w.symbols, domain.Symbol{
		QualifiedName: qualified,
		Name:          name,
		Kind:          kind,
		File:          w.path,
		StartLine:     int(n.StartPoint().Row) + 1,
		EndLine:       int(n.EndPoint().Row) + 1,
		Docstring:     doc,
		Visibility:    visibilityOf(name, name, w.spec.privatePrefixVisibility),
		Complexity:    1,
	})
}

// receiverName resolves the "receiver present for methods" part of
// qualifiedName (spec.md §4.1). For Go this reads the method's own
// receiver field; otherwise it's the enclosing name walk passed down (the
// nearest container, impl block or outer function).
func (w *walker) receiverName(n *sitter.Node, enclosing *string) string {
	if recv := n.ChildByFieldName("receiver"); recv != nil {
		text := strings.TrimSpace(string(w.content[recv.StartByte():recv.EndByte()]))
		text = strings.Trim(text, "()")
		text = strings.TrimSpace(text)
		text = strings.TrimPrefix(text, "*")
		if i := strings.LastIndexByte(text, ' '); i >= 0 {
			text = text[i+1:]
		}
		return strings.TrimPrefix(strings.TrimSpace(text), "*")
	}
	if enclosing != nil {
		return *enclosing
	}
	return ""
}

func (w *walker) collectImports(root *sitter.Node) {
	var visit func(*sitter.Node)
	visit = func(n *sitter.Node) {
		if n == nil {
			return
		}
		if w.spec.importKinds[n.Type()] {
			w.imports = append(w.imports, importFrom(w.content, n, w.spec))
		}
		for i := range int(n.ChildCount()) {
			visit(n.Child(i))
		}
	}
	visit(root)
}

func errParseFailed(path string, cause error) error {
	if cause == nil {
		return &parseError{path: path}
	}
	return &parseError{path: path, cause: cause}
}

type parseError struct {
	path  string
	cause error
}

func (e *parseError) Error() string {
	if e.cause != nil {
		return "tree-sitter failed to produce a syntax tree for " + e.path + ": " + e.cause.Error()
	}
	return "tree-sitter failed to produce a syntax tree for " + e.path
}

func (e *parseError) Unwrap() error { return e.cause }
