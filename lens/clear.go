package lens

import "github.com/chazu/lenschain/graph"

// ClearCodeRewritingGraphLens fences off the lenses below it from code
// lookups: types, fields and methods in instructions are returned as
// given. Name queries still pass through to the predecessor.
type ClearCodeRewritingGraphLens struct {
	Base
}

func NewClearCodeRewritingGraphLens(previous GraphLens) *ClearCodeRewritingGraphLens {
	l := &ClearCodeRewritingGraphLens{}
	l.Init(l, previous)
	return l
}

func (l *ClearCodeRewritingGraphLens) ClearsCodeRewritings() bool { return true }
func (l *ClearCodeRewritingGraphLens) HasCodeRewritings() bool    { return false }
func (l *ClearCodeRewritingGraphLens) IsClearCodeRewriting() bool { return true }

func (l *ClearCodeRewritingGraphLens) LookupPrototypeChangesForMethodDefinition(graph.Method, CodeLens) *PrototypeChanges {
	return None()
}

func (l *ClearCodeRewritingGraphLens) String() string {
	return "clear-code-rewritings\n-> " + l.previous.String()
}
