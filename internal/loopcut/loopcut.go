// Package loopcut implements the loop-handling pre-pass: rather than
// rejecting back-edges outright or bounded-unrolling a loop body, it cuts
// loops at invariant boundaries.
//
// It does not rewrite the IR. Instead it precomputes, once per function,
// which branch edges are back-edges (via a standard iterative dominator
// computation) so that internal/traverse can recognize a back-edge and
// stop recursing into it rather than looping forever, treating the
// target block's own loop_invariant call (if present, checked in place
// by the normal Obligation Checker dispatch) as the cut point.
package loopcut

import "github.com/llir/llvm/ir"

// Info is the per-function result of the pre-pass: which edges are
// back-edges, keyed by the (source block, target block) pair of the
// branch that forms the edge.
type Info struct {
	backEdges map[edge]bool
	headers   map[*ir.Block]bool
}

type edge struct {
	from, to *ir.Block
}

// IsBackEdge reports whether branching from `from` to `to` closes a loop
// (i.e. `to` dominates `from`).
func (i *Info) IsBackEdge(from, to *ir.Block) bool {
	return i.backEdges[edge{from, to}]
}

// IsHeader reports whether b is the target of at least one back-edge.
func (i *Info) IsHeader(b *ir.Block) bool {
	return i.headers[b]
}

// Analyze computes dominance over f's blocks and classifies every branch
// edge. It is recomputed once per function; loopcut carries no state
// across functions.
func Analyze(f *ir.Function) *Info {
	blocks := f.Blocks
	if len(blocks) == 0 {
		return &Info{backEdges: map[edge]bool{}, headers: map[*ir.Block]bool{}}
	}
	entry := blocks[0]
	dom := computeDominators(entry, blocks)

	info := &Info{backEdges: map[edge]bool{}, headers: map[*ir.Block]bool{}}
	for _, b := range blocks {
		for _, succ := range successors(b) {
			if dominates(dom, succ, b) {
				info.backEdges[edge{b, succ}] = true
				info.headers[succ] = true
			}
		}
	}
	return info
}

func successors(b *ir.Block) []*ir.Block {
	switch term := b.Term.(type) {
	case *ir.TermBr:
		return []*ir.Block{term.Target}
	case *ir.TermCondBr:
		return []*ir.Block{term.TargetTrue, term.TargetFalse}
	default:
		return nil
	}
}

// computeDominators runs the standard iterative dataflow dominator
// algorithm (Cooper/Harvey/Kennedy's "A Simple, Fast Dominance
// Algorithm") over f's reverse-postorder block list. The result maps each
// block to its immediate dominator; entry dominates itself.
func computeDominators(entry *ir.Block, blocks []*ir.Block) map[*ir.Block]*ir.Block {
	order := reversePostorder(entry, blocks)
	index := make(map[*ir.Block]int, len(order))
	for i, b := range order {
		index[b] = i
	}
	preds := predecessors(blocks)

	idom := make(map[*ir.Block]*ir.Block, len(order))
	idom[entry] = entry

	changed := true
	for changed {
		changed = false
		for _, b := range order[1:] {
			var newIdom *ir.Block
			for _, p := range preds[b] {
				if idom[p] == nil {
					continue
				}
				if newIdom == nil {
					newIdom = p
					continue
				}
				newIdom = intersect(idom, index, newIdom, p)
			}
			if idom[b] != newIdom {
				idom[b] = newIdom
				changed = true
			}
		}
	}
	return idom
}

func intersect(idom map[*ir.Block]*ir.Block, index map[*ir.Block]int, a, b *ir.Block) *ir.Block {
	for a != b {
		for index[a] > index[b] {
			a = idom[a]
		}
		for index[b] > index[a] {
			b = idom[b]
		}
	}
	return a
}

func predecessors(blocks []*ir.Block) map[*ir.Block][]*ir.Block {
	preds := make(map[*ir.Block][]*ir.Block, len(blocks))
	for _, b := range blocks {
		for _, succ := range successors(b) {
			preds[succ] = append(preds[succ], b)
		}
	}
	return preds
}

func reversePostorder(entry *ir.Block, blocks []*ir.Block) []*ir.Block {
	visited := make(map[*ir.Block]bool, len(blocks))
	var post []*ir.Block
	var visit func(b *ir.Block)
	visit = func(b *ir.Block) {
		if visited[b] {
			return
		}
		visited[b] = true
		for _, succ := range successors(b) {
			visit(succ)
		}
		post = append(post, b)
	}
	visit(entry)

	order := make([]*ir.Block, len(post))
	for i, b := range post {
		order[len(post)-1-i] = b
	}
	return order
}

// dominates reports whether a dominates b (including a == b), given an
// immediate-dominator map from computeDominators.
func dominates(idom map[*ir.Block]*ir.Block, a, b *ir.Block) bool {
	for cur := b; ; {
		if cur == a {
			return true
		}
		parent, ok := idom[cur]
		if !ok || parent == cur {
			return cur == a
		}
		cur = parent
	}
}
