package javascript

import "github.com/termfx/astmorph/ast"

// Field sources name the tree-sitter field feeding a field. "_" takes
// unnamed children in order and "@tok" records whether a keyword token is
// present.

func child(name, source string) ast.FieldDesc {
	return ast.FieldDesc{Name: name, Kind: ast.NodeValue, Source: source}
}

func list(name, source, sep, open string) ast.FieldDesc {
	return ast.FieldDesc{Name: name, Kind: ast.ListValue, Source: source, Sep: sep, Open: open}
}

func token(name, source string) ast.FieldDesc {
	return ast.FieldDesc{Name: name, Kind: ast.ScalarValue, Source: source}
}

func stmt(kind string, fields ...ast.FieldDesc) ast.KindDesc {
	return ast.KindDesc{Kind: kind, Category: ast.CategoryStatement, Fields: fields}
}

func expr(kind string, fields ...ast.FieldDesc) ast.KindDesc {
	return ast.KindDesc{Kind: kind, Category: ast.CategoryExpression, Fields: fields}
}

func other(kind string, fields ...ast.FieldDesc) ast.KindDesc {
	return ast.KindDesc{Kind: kind, Category: ast.CategoryOther, Fields: fields}
}

func leaf(kind string, category ast.Category) ast.KindDesc {
	return ast.KindDesc{Kind: kind, Category: category, Leaf: true}
}

func function(kind string, category ast.Category) ast.KindDesc {
	return ast.KindDesc{Kind: kind, Category: category, Fields: []ast.FieldDesc{
		list("decorators", "decorator", " ", ""),
		token("async", "@async"),
		child("name", "name"),
		child("parameters", "parameters"),
		child("body", "body"),
	}}
}

func class(kind string, category ast.Category) ast.KindDesc {
	return ast.KindDesc{Kind: kind, Category: category, Fields: []ast.FieldDesc{
		list("decorators", "decorator", "\n", ""),
		child("name", "name"),
		child("heritage", "_"),
		child("body", "body"),
	}}
}

// Kinds is the JavaScript kind table.
func Kinds() []ast.KindDesc {
	return []ast.KindDesc{
		other("program", list("body", "_", "\n", "")),

		stmt("expression_statement", child("expression", "_")),
		stmt("statement_block", list("body", "_", "\n", "{")),
		stmt("empty_statement"),
		stmt("lexical_declaration",
			token("kind", "kind"),
			list("declarators", "_", ", ", "")),
		stmt("variable_declaration", list("declarators", "_", ", ", "")),
		stmt("if_statement",
			child("condition", "condition"),
			child("consequence", "consequence"),
			child("alternative", "alternative")),
		stmt("for_statement",
			child("initializer", "initializer"),
			child("condition", "condition"),
			child("increment", "increment"),
			child("body", "body")),
		stmt("for_in_statement",
			token("await", "@await"),
			token("kind", "kind"),
			child("left", "left"),
			token("operator", "operator"),
			child("right", "right"),
			child("body", "body")),
		stmt("while_statement",
			child("condition", "condition"),
			child("body", "body")),
		stmt("do_statement",
			child("body", "body"),
			child("condition", "condition")),
		stmt("return_statement", child("value", "_")),
		stmt("throw_statement", child("value", "_")),
		stmt("break_statement", child("label", "label")),
		stmt("continue_statement", child("label", "label")),
		stmt("labeled_statement",
			child("label", "label"),
			child("body", "body")),
		stmt("try_statement",
			child("body", "body"),
			child("handler", "handler"),
			child("finalizer", "finalizer")),
		stmt("switch_statement",
			child("value", "value"),
			child("body", "body")),
		stmt("debugger_statement"),
		stmt("import_statement",
			list("clauses", "_", " ", ""),
			child("source", "source")),
		stmt("export_statement",
			list("decorators", "decorator", "\n", ""),
			token("default", "@default"),
			child("declaration", "declaration"),
			child("value", "value"),
			list("clauses", "_", " ", ""),
			child("source", "source")),
		function("function_declaration", ast.CategoryStatement),
		function("generator_function_declaration", ast.CategoryStatement),
		class("class_declaration", ast.CategoryStatement),

		other("else_clause", child("body", "_")),
		other("catch_clause",
			child("parameter", "parameter"),
			child("body", "body")),
		other("finally_clause", child("body", "body")),
		other("switch_body", list("cases", "_", "\n", "{")),
		other("switch_case",
			child("value", "value"),
			list("body", "body", "\n", ":")),
		other("switch_default", list("body", "body", "\n", ":")),
		other("variable_declarator",
			child("name", "name"),
			child("value", "value")),
		other("class_body", list("members", "member|_", "\n", "{")),
		other("class_heritage", child("parent", "_")),
		other("method_definition",
			list("decorators", "decorator", "\n", ""),
			token("static", "@static"),
			token("async", "@async"),
			token("accessor", "@get|@set"),
			token("generator", "@*"),
			child("name", "name"),
			child("parameters", "parameters"),
			child("body", "body")),
		other("field_definition",
			list("decorators", "decorator", "\n", ""),
			token("static", "@static"),
			child("property", "property"),
			child("value", "value")),
		other("formal_parameters", list("items", "_", ", ", "(")),
		other("arguments", list("items", "_", ", ", "(")),
		other("pair",
			child("key", "key"),
			child("value", "value")),
		other("template_substitution", child("expression", "_")),

		function("function_expression", ast.CategoryExpression),
		function("function", ast.CategoryExpression),
		function("generator_function", ast.CategoryExpression),
		class("class", ast.CategoryExpression),
		expr("arrow_function",
			token("async", "@async"),
			child("parameter", "parameter"),
			child("parameters", "parameters"),
			child("body", "body")),
		expr("parenthesized_expression", child("expression", "_")),
		expr("binary_expression",
			child("left", "left"),
			token("operator", "operator"),
			child("right", "right")),
		expr("unary_expression",
			token("operator", "operator"),
			child("argument", "argument")),
		expr("update_expression",
			child("argument", "argument"),
			token("operator", "operator")),
		expr("assignment_expression",
			child("left", "left"),
			child("right", "right")),
		expr("augmented_assignment_expression",
			child("left", "left"),
			token("operator", "operator"),
			child("right", "right")),
		expr("call_expression",
			child("function", "function"),
			child("optional_chain", "optional_chain"),
			child("arguments", "arguments")),
		expr("new_expression",
			child("constructor", "constructor"),
			child("arguments", "arguments")),
		expr("member_expression",
			child("object", "object"),
			child("optional_chain", "optional_chain"),
			child("property", "property")),
		expr("subscript_expression",
			child("object", "object"),
			child("optional_chain", "optional_chain"),
			child("index", "index")),
		expr("ternary_expression",
			child("condition", "condition"),
			child("consequence", "consequence"),
			child("alternative", "alternative")),
		expr("await_expression", child("argument", "_")),
		expr("yield_expression",
			token("delegate", "@*"),
			child("argument", "_")),
		expr("spread_element", child("argument", "_")),
		expr("array", list("items", "_", ", ", "[")),
		expr("object", list("items", "_", ", ", "{")),
		expr("string", list("parts", "_", "", `"'`)),
		expr("template_string", list("parts", "_", "", "`")),

		leaf("identifier", ast.CategoryExpression),
		leaf("property_identifier", ast.CategoryExpression),
		leaf("shorthand_property_identifier", ast.CategoryExpression),
		leaf("shorthand_property_identifier_pattern", ast.CategoryOther),
		leaf("statement_identifier", ast.CategoryOther),
		leaf("private_property_identifier", ast.CategoryExpression),
		leaf("number", ast.CategoryExpression),
		leaf("regex", ast.CategoryExpression),
		leaf("true", ast.CategoryExpression),
		leaf("false", ast.CategoryExpression),
		leaf("null", ast.CategoryExpression),
		leaf("undefined", ast.CategoryExpression),
		leaf("this", ast.CategoryExpression),
		leaf("super", ast.CategoryExpression),
		leaf("string_fragment", ast.CategoryOther),
		leaf("escape_sequence", ast.CategoryOther),
		leaf("optional_chain", ast.CategoryOther),
		leaf("comment", ast.CategoryOther),
	}
}

// EquivalenceClasses groups interchangeable JavaScript kinds.
func EquivalenceClasses() []ast.EquivalenceClass {
	return []ast.EquivalenceClass{
		{
			Kinds: []string{
				"function_declaration", "function_expression", "function",
				"generator_function_declaration", "generator_function",
				"arrow_function", "method_definition",
			},
			Base:       "function",
			BaseFields: []string{"parameters", "body"},
		},
		{Kinds: []string{"class_declaration", "class"}},
		{Kinds: Identifiers()},
	}
}

// Identifiers lists the kinds that can carry a placeholder name.
func Identifiers() []string {
	return []string{
		"identifier",
		"property_identifier",
		"shorthand_property_identifier",
		"shorthand_property_identifier_pattern",
		"statement_identifier",
	}
}

// FormPairs links declarations to their expression forms.
func FormPairs() []ast.FormPair {
	return []ast.FormPair{
		{Declaration: "function_declaration", Expression: "function_expression", NameField: "name"},
		{Declaration: "function_declaration", Expression: "function", NameField: "name"},
		{Declaration: "generator_function_declaration", Expression: "generator_function", NameField: "name"},
		{Declaration: "class_declaration", Expression: "class", NameField: "name"},
	}
}
