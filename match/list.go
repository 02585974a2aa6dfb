package match

import "github.com/termfx/astmorph/ast"

// listStep is an anchor, optionally preceded by a gap.
type listStep struct {
	m      Matcher
	gap    string
	hasGap bool
}

// listPattern matches a pattern list with embedded array captures against a
// candidate list.
type listPattern struct {
	steps []listStep
	// empties are array captures immediately followed by another one; they
	// always bind the empty span.
	empties  []string
	trail    string
	hasTrail bool
	// lastGap is the index of the last step preceded by a gap, or -1.
	lastGap int
}

// align matches the pattern against list starting at start. Each anchor
// either matches the next element (no gap before it) or the first element
// it accepts at or after the current position, the skipped elements going
// to the gap. When whole is set the alignment must consume the list to its
// end and the anchors after the last gap are pinned to the list end.
// It returns the exclusive end index and the environment, or nil.
func (lp *listPattern) align(list []*ast.Path, start int, env *Env, whole bool) (int, *Env) {
	for _, name := range lp.empties {
		if env = bindGap(env, name, nil); env == nil {
			return -1, nil
		}
	}

	pos := start
	for i, st := range lp.steps {
		if !st.hasGap {
			if pos >= len(list) {
				return -1, nil
			}
			if env = st.m.Match(list[pos], env); env == nil {
				return -1, nil
			}
			pos++
			continue
		}

		at, next := -1, (*Env)(nil)
		if whole && i == lp.lastGap && !lp.hasTrail {
			j := len(list) - (len(lp.steps) - i)
			if j >= pos {
				if e := st.m.Match(list[j], env); e != nil {
					at, next = j, e
				}
			}
		} else {
			for j := pos; j < len(list); j++ {
				if e := st.m.Match(list[j], env); e != nil {
					at, next = j, e
					break
				}
			}
		}
		if at < 0 {
			return -1, nil
		}
		if env = bindGap(next, st.gap, list[pos:at]); env == nil {
			return -1, nil
		}
		pos = at + 1
	}

	if lp.hasTrail {
		if env = bindGap(env, lp.trail, list[pos:]); env == nil {
			return -1, nil
		}
		pos = len(list)
	}
	if whole && pos != len(list) {
		return -1, nil
	}
	return pos, env
}

func bindGap(env *Env, name string, span []*ast.Path) *Env {
	gap := NewEnv().BindList(name, span)
	out, ok := env.Merge(gap)
	if !ok {
		return nil
	}
	return out
}
