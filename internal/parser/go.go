package parser

import (
	"github.com/smacker/go-tree-sitter/golang"

	"github.com/docker/cv-index/internal/domain"
)

func newGoParser() *tsParser {
	return &tsParser{spec: langSpec{
		name:       "go",
		extensions: []string{".go"},
		grammar:    golang.GetLanguage(),
		functionKinds: map[string]domain.SymbolKind{
			"function_declaration": domain.KindFunction,
			"method_declaration":   domain.KindMethod,
		},
		containerKinds: map[string]domain.SymbolKind{
			"type_spec": domain.KindType,
		},
		commentKinds: map[string]bool{"comment": true},
		branchKinds: map[string]bool{
			"if_statement":              true,
			"for_statement":             true,
			"expression_switch_statement": true,
			"type_switch_statement":      true,
			"select_statement":           true,
			"expression_case":            true,
			"communication_case":         true,
		},
		callKinds:                map[string]bool{"call_expression": true},
		conditionalAncestorKinds: map[string]bool{"if_statement": true, "expression_switch_statement": true, "type_switch_statement": true},
		importKinds:              map[string]bool{"import_spec": true},
		privatePrefixVisibility:  false,
	}}
}
