package base

import (
	"sync"
	"sync/atomic"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/termfx/astmorph/providers"
)

// parserPool hands out tree-sitter parsers, which are not safe for
// concurrent use.
type parserPool struct {
	pool    sync.Pool
	borrows atomic.Int64
	returns atomic.Int64
}

func newParserPool(lang *sitter.Language) *parserPool {
	pp := &parserPool{}
	pp.pool.New = func() any {
		parser := sitter.NewParser()
		parser.SetLanguage(lang)
		return parser
	}
	return pp
}

func (pp *parserPool) get() *sitter.Parser {
	pp.borrows.Add(1)
	return pp.pool.Get().(*sitter.Parser)
}

func (pp *parserPool) put(parser *sitter.Parser) {
	pp.returns.Add(1)
	pp.pool.Put(parser)
}

func (pp *parserPool) stats() providers.Stats {
	borrowed, returned := pp.borrows.Load(), pp.returns.Load()
	return providers.Stats{
		BorrowCount: borrowed,
		ReturnCount: returned,
		Active:      borrowed - returned,
	}
}
