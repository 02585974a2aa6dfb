package javascript

import "github.com/termfx/astmorph/providers/base"

// New creates a JavaScript provider using base functionality with the
// JavaScript kind table.
func New(opts ...base.Option) *base.Provider {
	return base.New(&Config{}, opts...)
}
