package parser

import (
	"github.com/smacker/go-tree-sitter/python"

	"github.com/docker/cv-index/internal/domain"
)

func newPythonParser() *tsParser {
	return &tsParser{spec: langSpec{
		name:       "python",
		extensions: []string{".py"},
		grammar:    python.GetLanguage(),
		functionKinds: map[string]domain.SymbolKind{
			"function_definition": domain.KindFunction,
		},
		containerKinds: map[string]domain.SymbolKind{
			"class_definition": domain.KindClass,
		},
		commentKinds: map[string]bool{"comment": true},
		branchKinds: map[string]bool{
			"if_statement":          true,
			"for_statement":         true,
			"while_statement":       true,
			"except_clause":         true,
			"match_statement":       true,
			"case_clause":           true,
			"conditional_expression": true,
			"boolean_operator":      true,
		},
		callKinds: map[string]bool{"call": true},
		conditionalAncestorKinds: map[string]bool{
			"if_statement":           true,
			"match_statement":        true,
			"conditional_expression": true,
		},
		importKinds:             map[string]bool{"import_statement": true, "import_from_statement": true},
		privatePrefixVisibility: true,
	}}
}
