package typescript

import "github.com/termfx/astmorph/providers/base"

// New creates a TypeScript provider. TypeScript shares the JavaScript kind
// table and adds type syntax on top.
func New(opts ...base.Option) *base.Provider {
	return base.New(&Config{}, opts...)
}
