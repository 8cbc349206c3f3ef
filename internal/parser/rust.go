package parser

import (
	"github.com/smacker/go-tree-sitter/rust"

	"github.com/docker/cv-index/internal/domain"
)

func newRustParser() *tsParser {
	return &tsParser{spec: langSpec{
		name:       "rust",
		extensions: []string{".rs"},
		grammar:    rust.GetLanguage(),
		functionKinds: map[string]domain.SymbolKind{
			"function_item": domain.KindFunction,
		},
		containerKinds: map[string]domain.SymbolKind{
			"struct_item": domain.KindStruct,
			"enum_item":   domain.KindEnum,
			"trait_item":  domain.KindInterface,
			"type_item":   domain.KindType,
		},
		commentKinds: map[string]bool{"line_comment": true, "block_comment": true},
		branchKinds: map[string]bool{
			"if_expression":     true,
			"if_let_expression": true,
			"for_expression":    true,
			"while_expression":  true,
			"loop_expression":   true,
			"match_expression":  true,
			"match_arm":         true,
		},
		callKinds: map[string]bool{"call_expression": true},
		conditionalAncestorKinds: map[string]bool{
			"if_expression":    true,
			"match_expression": true,
		},
		importKinds:             map[string]bool{"use_declaration": true},
		implKinds:               map[string]bool{"impl_item": true},
		implNameField:           "type",
		privatePrefixVisibility: false,
	}}
}
