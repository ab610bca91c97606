package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"gorm.io/datatypes"

	"opsdesk/internal/core/ports"
	"opsdesk/internal/domain"
)

// Status tags an engine outcome.
type Status string

const (
	StatusCompleted Status = "COMPLETED"
	StatusSuspended Status = "SUSPENDED"
	StatusFailed    Status = "FAILED"
)

// Outcome is the tagged result of an Invoke or Resume call: exactly one of
// Completed(state), Suspended(interrupt payload) or Failed(err).
type Outcome[S any] struct {
	Status    Status
	State     S
	Interrupt any
	Err       error
}

// checkpointMetadata records which node produced a checkpoint.
type checkpointMetadata struct {
	Source string `json:"source"` // "input" or "loop"
	Step   int    `json:"step"`   // node index, -1 for the input checkpoint
	Node   string `json:"node,omitempty"`
}

// Engine executes a graph over a single thread: it loads the latest
// checkpoint (or starts fresh), runs nodes in order, persists a checkpoint
// after each node, and implements the suspend/resume protocol. Distinct
// threads need no coordination; all state is keyed by thread id.
type Engine[S State[S]] struct {
	graph       *Graph[S]
	store       ports.CheckpointStore
	namespace   string
	logger      *slog.Logger
	observeNode func(node string, d time.Duration)
}

// Options configures an Engine.
type Options struct {
	Namespace   string
	Logger      *slog.Logger
	ObserveNode func(node string, d time.Duration)
}

func New[S State[S]](graph *Graph[S], store ports.CheckpointStore, opts Options) *Engine[S] {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine[S]{
		graph:       graph,
		store:       store,
		namespace:   opts.Namespace,
		logger:      opts.Logger.With("graph", graph.Name()),
		observeNode: opts.ObserveNode,
	}
}

// Invoke starts or continues the thread. A thread with no checkpoints
// begins at the start of the graph with the supplied initial state; a
// thread parked at a suspend node returns Suspended again with the same
// payload, since the decision input has not arrived yet.
func (e *Engine[S]) Invoke(ctx context.Context, threadID string, initial S) Outcome[S] {
	tuple, err := e.store.GetLatest(ctx, threadID, e.namespace, "")
	if errors.Is(err, domain.ErrNotFound) {
		checkpointID, perr := e.put(ctx, threadID, "", initial, checkpointMetadata{Source: "input", Step: -1})
		if perr != nil {
			return e.failed(threadID, initial, perr)
		}
		return e.run(ctx, threadID, initial, checkpointID, 0, nil)
	}
	if err != nil {
		var zero S
		return e.failed(threadID, zero, fmt.Errorf("load checkpoint: %w", err))
	}

	state, next, err := e.restore(tuple)
	if err != nil {
		var zero S
		return e.failed(threadID, zero, err)
	}
	return e.run(ctx, threadID, state, tuple.Checkpoint.CheckpointID, next, tuple.PendingWrites)
}

// Resume feeds an externally supplied decision into the thread's suspend
// node and continues execution from the node after it.
func (e *Engine[S]) Resume(ctx context.Context, threadID string, decision any) Outcome[S] {
	var zero S

	tuple, err := e.store.GetLatest(ctx, threadID, e.namespace, "")
	if err != nil {
		return e.failed(threadID, zero, fmt.Errorf("load checkpoint: %w", err))
	}

	state, next, err := e.restore(tuple)
	if err != nil {
		return e.failed(threadID, zero, err)
	}
	if next >= len(e.graph.nodes) || !e.graph.nodes[next].suspends() {
		return e.failed(threadID, state, fmt.Errorf("%w: thread is not awaiting a decision", domain.ErrInvalidDecision))
	}

	node := e.graph.nodes[next]
	patch, err := node.Resume(ctx, state, decision)
	if err != nil {
		return e.failed(threadID, state, err)
	}
	if err := e.putWrites(ctx, threadID, tuple.Checkpoint.CheckpointID, node.Name, patch); err != nil {
		return e.failed(threadID, state, err)
	}

	state = state.Merge(patch)
	checkpointID, err := e.put(ctx, threadID, tuple.Checkpoint.CheckpointID, state, checkpointMetadata{Source: "loop", Step: next, Node: node.Name})
	if err != nil {
		return e.failed(threadID, state, err)
	}
	e.logger.Info("decision applied", "thread_id", threadID, "node", node.Name)

	return e.run(ctx, threadID, state, checkpointID, next+1, nil)
}

// run executes nodes from index start, checkpointing after each one.
func (e *Engine[S]) run(ctx context.Context, threadID string, state S, checkpointID string, start int, pending []domain.CheckpointWrite) Outcome[S] {
	for i := start; i < len(e.graph.nodes); i++ {
		node := e.graph.nodes[i]

		if node.suspends() {
			payload := node.Interrupt(state)
			e.logger.Info("run suspended", "thread_id", threadID, "node", node.Name)
			return Outcome[S]{Status: StatusSuspended, State: state, Interrupt: payload}
		}

		patch, recovered, err := e.stepPatch(ctx, threadID, state, checkpointID, node, pending)
		if err != nil {
			return e.failed(threadID, state, err)
		}

		state = state.Merge(patch)
		next, err := e.put(ctx, threadID, checkpointID, state, checkpointMetadata{Source: "loop", Step: i, Node: node.Name})
		if err != nil {
			return e.failed(threadID, state, err)
		}
		checkpointID = next

		e.logger.Info("node committed",
			"thread_id", threadID, "node", node.Name, "step", i, "recovered", recovered)

		// Pending writes belong to the checkpoint we loaded from; anything
		// past the first committed node is freshly computed.
		pending = nil
	}
	return Outcome[S]{Status: StatusCompleted, State: state}
}

// stepPatch produces the node's patch, either by reconciling a pending
// write left over from a crash between the node finishing and its
// checkpoint committing, or by executing the node and recording its output
// before it is folded in.
func (e *Engine[S]) stepPatch(ctx context.Context, threadID string, state S, checkpointID string, node Node[S], pending []domain.CheckpointWrite) (S, bool, error) {
	var patch S
	for _, w := range pending {
		if w.StepID != node.Name {
			continue
		}
		if err := json.Unmarshal(w.Writes, &patch); err != nil {
			return patch, false, fmt.Errorf("decode pending writes for %s: %w", node.Name, err)
		}
		return patch, true, nil
	}

	started := time.Now()
	patch, err := node.Run(ctx, state)
	if e.observeNode != nil {
		e.observeNode(node.Name, time.Since(started))
	}
	if err != nil {
		return patch, false, fmt.Errorf("node %s: %w", node.Name, err)
	}
	if err := e.putWrites(ctx, threadID, checkpointID, node.Name, patch); err != nil {
		return patch, false, err
	}
	return patch, false, nil
}

// restore rebuilds state from a checkpoint and infers the next node index
// from its metadata.
func (e *Engine[S]) restore(tuple *ports.CheckpointTuple) (S, int, error) {
	var state S
	if err := json.Unmarshal(tuple.Checkpoint.State, &state); err != nil {
		return state, 0, fmt.Errorf("decode checkpoint state: %w", err)
	}

	var meta checkpointMetadata
	if err := json.Unmarshal(tuple.Checkpoint.Metadata, &meta); err != nil {
		return state, 0, fmt.Errorf("decode checkpoint metadata: %w", err)
	}
	if meta.Step < 0 {
		return state, 0, nil
	}
	idx, ok := e.graph.index(meta.Node)
	if !ok {
		return state, 0, fmt.Errorf("checkpoint references unknown node %q", meta.Node)
	}
	return state, idx + 1, nil
}

func (e *Engine[S]) put(ctx context.Context, threadID, parentID string, state S, meta checkpointMetadata) (string, error) {
	stateBlob, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("encode state: %w", err)
	}
	metaBlob, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	id, err := e.store.Put(ctx, threadID, e.namespace, parentID, datatypes.JSON(stateBlob), datatypes.JSON(metaBlob))
	if err != nil {
		return "", fmt.Errorf("put checkpoint: %w", err)
	}
	return id, nil
}

func (e *Engine[S]) putWrites(ctx context.Context, threadID, checkpointID, stepID string, patch S) error {
	blob, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("encode writes: %w", err)
	}
	if err := e.store.PutWrites(ctx, threadID, e.namespace, checkpointID, stepID, datatypes.JSON(blob)); err != nil {
		return fmt.Errorf("put writes: %w", err)
	}
	return nil
}

func (e *Engine[S]) failed(threadID string, state S, err error) Outcome[S] {
	e.logger.Error("run failed", "thread_id", threadID, "error", err)
	return Outcome[S]{Status: StatusFailed, State: state, Err: err}
}
