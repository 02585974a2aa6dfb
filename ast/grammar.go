package ast

// Category is the syntactic shape of a kind, used to coerce replacements
// into the slot they land in.
type Category int

const (
	CategoryOther Category = iota
	CategoryExpression
	CategoryStatement
)

func (c Category) String() string {
	switch c {
	case CategoryExpression:
		return "expression"
	case CategoryStatement:
		return "statement"
	default:
		return "other"
	}
}

// FieldDesc describes one field of a kind.
//
// Source tells a frontend where the field comes from in its parse tree:
// a grammar field name, "_" for unnamed positional children, "@tok" for a
// keyword flag whose scalar is tok when present. Alternatives are separated
// by "|". Sep is the default separator between list elements and Open the
// delimiters an empty list sits right after.
type FieldDesc struct {
	Name   string
	Kind   ValueKind
	Source string
	Sep    string
	Open   string
}

// KindDesc is the static descriptor of a node kind.
type KindDesc struct {
	Kind     string
	Category Category
	Leaf     bool
	Fields   []FieldDesc
}

// Field returns the descriptor of a field or nil.
func (d *KindDesc) Field(name string) *FieldDesc {
	for i := range d.Fields {
		if d.Fields[i].Name == name {
			return &d.Fields[i]
		}
	}
	return nil
}

// EquivalenceClass groups kinds the matcher treats as interchangeable.
// When Base is set the class is a base-class family and only BaseFields,
// plus fields the pattern fills in, are compared across kinds.
type EquivalenceClass struct {
	Kinds      []string
	Base       string
	BaseFields []string
}

// FormPair links the declaration form of a construct to its expression form.
// NameField is the field that names the declaration.
type FormPair struct {
	Declaration string
	Expression  string
	NameField   string
}

// Grammar is what a frontend tells the matcher and the replacement compiler
// about its language. Implementations are immutable.
type Grammar interface {
	Name() string
	Describe(kind string) (*KindDesc, bool)
	Category(kind string) Category
	EquivalenceClasses() []EquivalenceClass
	FormPairs() []FormPair

	// ExpressionStatement returns the kind wrapping an expression used as a
	// statement and the field holding the expression.
	ExpressionStatement() (kind, field string)
	IsIdentifier(kind string) bool

	// IsLiteral reports string-like literal kinds. LiteralValue returns the
	// decoded text of a literal without interpolations. NewLiteral builds a
	// literal shaped like the given one that decodes to value.
	IsLiteral(kind string) bool
	LiteralValue(n *Node) (string, bool)
	NewLiteral(like *Node, value string) (*Node, error)

	NewIdentifier(name string) *Node
	NewExpressionStatement(expr *Node) *Node
}
