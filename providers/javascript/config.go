package javascript

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"

	"github.com/termfx/astmorph/ast"
	"github.com/termfx/astmorph/providers/base"
)

// Config implements LanguageConfig for JavaScript
type Config struct{}

// Language identifier
func (c *Config) Language() string {
	return "javascript"
}

// Extensions supported
func (c *Config) Extensions() []string {
	return []string{".js", ".jsx", ".mjs", ".cjs"}
}

// GetLanguage returns tree-sitter language for JavaScript
func (c *Config) GetLanguage() *sitter.Language {
	return javascript.GetLanguage()
}

func (c *Config) Kinds() []ast.KindDesc {
	return Kinds()
}

func (c *Config) EquivalenceClasses() []ast.EquivalenceClass {
	return EquivalenceClasses()
}

func (c *Config) FormPairs() []ast.FormPair {
	return FormPairs()
}

func (c *Config) Syntax() base.Syntax {
	return Syntax()
}

// Syntax describes the concrete syntax shared by JavaScript dialects.
func Syntax() base.Syntax {
	return base.Syntax{
		Program:             "body",
		ExpressionStatement: "expression_statement",
		ExpressionField:     "expression",
		Terminator:          ";",
		Identifier:          "identifier",
		Identifiers:         Identifiers(),
		Extras:              []string{"comment", "html_comment"},
		Literals: map[string]base.LiteralSyntax{
			"string": {Parts: "parts", Fragment: "string_fragment"},
			"template_string": {
				Parts:         "parts",
				Fragment:      "string_fragment",
				Interpolation: "template_substitution",
			},
		},
		Escape:   Escape,
		Unescape: Unescape,
		NameKeywords: map[string]string{
			"function_declaration":           "function",
			"function_expression":            "function",
			"generator_function_declaration": "*",
			"generator_function":             "*",
			"class_declaration":              "class",
			"class":                          "class",
		},
	}
}
