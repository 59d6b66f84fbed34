package graph

import (
	"sync"

	"github.com/dukex/convoflow/pkg/models"
)

// Handle is the output handle a connection gesture was started from.
type Handle string

const (
	HandleDefault Handle = ""
	HandleYes     Handle = "yes"
	HandleNo      Handle = "no"
)

// Label maps a condition node's output handle to its branch label.
func (h Handle) Label() models.EdgeLabel {
	if h == HandleNo {
		return models.EdgeLabelNo
	}

	return models.EdgeLabelYes
}

// Pending is an in-progress connection gesture.
type Pending struct {
	From   string `json:"from"`
	Handle Handle `json:"handle"`
}

// Connector tracks the editor's pending connection gesture: idle, or connecting from a node handle.
// It is editing state only and never consulted by the interpreter.
type Connector struct {
	mu      sync.Mutex
	pending *Pending
}

// Start begins connecting from nodeID, replacing any gesture already in progress.
func (c *Connector) Start(nodeID string, handle Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending = &Pending{From: nodeID, Handle: handle}
}

// Cancel returns to idle.
func (c *Connector) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending = nil
}

// Pending returns the gesture in progress, if any.
func (c *Connector) Pending() (Pending, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending == nil {
		return Pending{}, false
	}

	return *c.pending, true
}

// HandleFor returns the handle to label an edge leaving source with.
// The pending handle only applies when the gesture started at source.
func (c *Connector) HandleFor(source string) Handle {
	pending, ok := c.Pending()
	if !ok || pending.From != source {
		return HandleDefault
	}

	return pending.Handle
}

// Complete ends the gesture and returns it. ok is false when no gesture was in progress.
func (c *Connector) Complete() (Pending, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending == nil {
		return Pending{}, false
	}

	pending := *c.pending
	c.pending = nil

	return pending, true
}
