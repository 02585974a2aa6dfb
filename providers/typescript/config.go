package typescript

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/termfx/astmorph/ast"
	"github.com/termfx/astmorph/providers/base"
	"github.com/termfx/astmorph/providers/javascript"
)

// Config implements LanguageConfig for TypeScript
type Config struct{}

// Language identifier
func (c *Config) Language() string {
	return "typescript"
}

// Extensions supported
func (c *Config) Extensions() []string {
	return []string{".ts", ".tsx", ".mts", ".cts"}
}

// GetLanguage returns tree-sitter language for TypeScript
func (c *Config) GetLanguage() *sitter.Language {
	return typescript.GetLanguage()
}

// typed lists the JavaScript kinds that gain type parameters and a return
// type in TypeScript.
var typed = map[string]bool{
	"function_declaration":           true,
	"function_expression":            true,
	"function":                       true,
	"generator_function_declaration": true,
	"generator_function":             true,
	"arrow_function":                 true,
	"method_definition":              true,
}

// Kinds extends the JavaScript table with type syntax.
func (c *Config) Kinds() []ast.KindDesc {
	kinds := javascript.Kinds()
	for i, d := range kinds {
		switch {
		case typed[d.Kind]:
			fields := append([]ast.FieldDesc(nil), d.Fields...)
			fields = append(fields,
				ast.FieldDesc{Name: "type_parameters", Kind: ast.NodeValue, Source: "type_parameters"},
				ast.FieldDesc{Name: "return_type", Kind: ast.NodeValue, Source: "return_type"})
			kinds[i].Fields = fields
		case d.Kind == "variable_declarator":
			kinds[i].Fields = append(append([]ast.FieldDesc(nil), d.Fields...),
				ast.FieldDesc{Name: "type", Kind: ast.NodeValue, Source: "type"})
		}
	}

	return append(kinds,
		ast.KindDesc{Kind: "interface_declaration", Category: ast.CategoryStatement, Fields: []ast.FieldDesc{
			{Name: "name", Kind: ast.NodeValue, Source: "name"},
			{Name: "type_parameters", Kind: ast.NodeValue, Source: "type_parameters"},
			{Name: "heritage", Kind: ast.NodeValue, Source: "_"},
			{Name: "body", Kind: ast.NodeValue, Source: "body"},
		}},
		ast.KindDesc{Kind: "type_alias_declaration", Category: ast.CategoryStatement, Fields: []ast.FieldDesc{
			{Name: "name", Kind: ast.NodeValue, Source: "name"},
			{Name: "type_parameters", Kind: ast.NodeValue, Source: "type_parameters"},
			{Name: "value", Kind: ast.NodeValue, Source: "value"},
		}},
		ast.KindDesc{Kind: "enum_declaration", Category: ast.CategoryStatement, Fields: []ast.FieldDesc{
			{Name: "name", Kind: ast.NodeValue, Source: "name"},
			{Name: "body", Kind: ast.NodeValue, Source: "body"},
		}},
		ast.KindDesc{Kind: "as_expression", Category: ast.CategoryExpression, Fields: []ast.FieldDesc{
			{Name: "expression", Kind: ast.NodeValue, Source: "_"},
			{Name: "type", Kind: ast.NodeValue, Source: "_"},
		}},
		ast.KindDesc{Kind: "non_null_expression", Category: ast.CategoryExpression, Fields: []ast.FieldDesc{
			{Name: "expression", Kind: ast.NodeValue, Source: "_"},
		}},
		ast.KindDesc{Kind: "required_parameter", Category: ast.CategoryOther, Fields: []ast.FieldDesc{
			{Name: "pattern", Kind: ast.NodeValue, Source: "pattern"},
			{Name: "type", Kind: ast.NodeValue, Source: "type"},
			{Name: "value", Kind: ast.NodeValue, Source: "value"},
		}},
		ast.KindDesc{Kind: "optional_parameter", Category: ast.CategoryOther, Fields: []ast.FieldDesc{
			{Name: "pattern", Kind: ast.NodeValue, Source: "pattern"},
			{Name: "type", Kind: ast.NodeValue, Source: "type"},
			{Name: "value", Kind: ast.NodeValue, Source: "value"},
		}},
		ast.KindDesc{Kind: "type_annotation", Category: ast.CategoryOther, Fields: []ast.FieldDesc{
			{Name: "type", Kind: ast.NodeValue, Source: "_"},
		}},
		ast.KindDesc{Kind: "type_identifier", Category: ast.CategoryOther, Leaf: true},
		ast.KindDesc{Kind: "predefined_type", Category: ast.CategoryOther, Leaf: true},
	)
}

func (c *Config) EquivalenceClasses() []ast.EquivalenceClass {
	return javascript.EquivalenceClasses()
}

func (c *Config) FormPairs() []ast.FormPair {
	return javascript.FormPairs()
}

func (c *Config) Syntax() base.Syntax {
	syn := javascript.Syntax()
	syn.Identifiers = append(append([]string(nil), syn.Identifiers...), "type_identifier")
	return syn
}
