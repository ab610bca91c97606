package engine

import (
	"context"
	"fmt"
)

// State is implemented by workflow state records. Merge folds a partial
// patch into the receiver and returns the result; the per-field merge
// strategy (default: replace, lists replace wholesale) lives in the state
// type itself.
type State[S any] interface {
	Merge(patch S) S
}

// Node is one step function in a fixed graph. A regular node sets Run; a
// suspend node sets Interrupt and Resume instead, and the engine parks the
// thread there until a decision arrives.
type Node[S State[S]] struct {
	Name string

	// Run computes the node's partial-state patch. It may read and write
	// external systems; the engine offers no automatic retry, so a failure
	// leaves the thread at its last good checkpoint.
	Run func(ctx context.Context, state S) (S, error)

	// Interrupt builds the payload surfaced to the caller when execution
	// reaches this node without a decision.
	Interrupt func(state S) any

	// Resume turns the externally supplied decision into the node's patch,
	// as if it were the node's return value.
	Resume func(ctx context.Context, state S, decision any) (S, error)
}

func (n Node[S]) suspends() bool { return n.Interrupt != nil }

// Graph is a fixed, ordered sequence of named nodes.
type Graph[S State[S]] struct {
	name  string
	nodes []Node[S]
	byIdx map[string]int
}

func NewGraph[S State[S]](name string, nodes ...Node[S]) (*Graph[S], error) {
	if name == "" {
		return nil, fmt.Errorf("graph name required")
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("graph needs at least one node")
	}
	byIdx := make(map[string]int, len(nodes))
	for i, n := range nodes {
		if n.Name == "" {
			return nil, fmt.Errorf("node %d: name required", i)
		}
		if _, dup := byIdx[n.Name]; dup {
			return nil, fmt.Errorf("duplicate node name %q", n.Name)
		}
		if n.suspends() {
			if n.Resume == nil {
				return nil, fmt.Errorf("suspend node %q needs a Resume func", n.Name)
			}
			if n.Run != nil {
				return nil, fmt.Errorf("suspend node %q must not set Run", n.Name)
			}
		} else if n.Run == nil {
			return nil, fmt.Errorf("node %q needs a Run func", n.Name)
		}
		byIdx[n.Name] = i
	}
	return &Graph[S]{name: name, nodes: nodes, byIdx: byIdx}, nil
}

func (g *Graph[S]) Name() string { return g.name }

func (g *Graph[S]) index(node string) (int, bool) {
	i, ok := g.byIdx[node]
	return i, ok
}
