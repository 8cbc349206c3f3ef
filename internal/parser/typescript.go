package parser

import (
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/docker/cv-index/internal/domain"
)

func newTypeScriptParser() *tsParser {
	return &tsParser{spec: langSpec{
		name:       "typescript",
		extensions: []string{".ts", ".tsx", ".js", ".jsx"},
		grammar:    typescript.GetLanguage(),
		functionKinds: map[string]domain.SymbolKind{
			"function_declaration":           domain.KindFunction,
			"generator_function_declaration": domain.KindFunction,
			"method_definition":              domain.KindMethod,
		},
		containerKinds: map[string]domain.SymbolKind{
			"class_declaration":     domain.KindClass,
			"interface_declaration": domain.KindInterface,
			"type_alias_declaration": domain.KindType,
			"enum_declaration":      domain.KindEnum,
		},
		commentKinds: map[string]bool{"comment": true},
		branchKinds: map[string]bool{
			"if_statement":        true,
			"for_statement":       true,
			"for_in_statement":    true,
			"while_statement":     true,
			"do_statement":        true,
			"switch_statement":    true,
			"switch_case":         true,
			"catch_clause":        true,
			"ternary_expression":  true,
		},
		callKinds: map[string]bool{"call_expression": true, "new_expression": true},
		conditionalAncestorKinds: map[string]bool{
			"if_statement":       true,
			"switch_statement":   true,
			"ternary_expression": true,
		},
		importKinds:             map[string]bool{"import_statement": true},
		privatePrefixVisibility: true,
	}}
}
