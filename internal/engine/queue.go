package engine

import (
	"github.com/emirpasic/gods/trees/redblacktree"
)

// eventNode is one entry in the queue tree. Rescheduling an event flips the
// old node's valid flag instead of deleting it; Pop drops invalid nodes lazily.
type eventNode struct {
	event WorldEvent
	key   nodeKey
	valid bool
}

type nodeKey struct {
	date Date
	id   int64
	seq  uint64
}

func compareNodeKeys(a, b interface{}) int {
	ka := a.(nodeKey)
	kb := b.(nodeKey)
	switch {
	case ka.date < kb.date:
		return -1
	case ka.date > kb.date:
		return 1
	case ka.id < kb.id:
		return -1
	case ka.id > kb.id:
		return 1
	case ka.seq < kb.seq:
		return -1
	case ka.seq > kb.seq:
		return 1
	}
	return 0
}

// EventQueue orders pending events by (trigger date, id).
type EventQueue struct {
	tree *redblacktree.Tree
	seq  uint64
	live int
}

// NewEventQueue creates an empty queue.
func NewEventQueue() *EventQueue {
	return &EventQueue{tree: redblacktree.NewWith(compareNodeKeys)}
}

// Insert schedules e at its current trigger date. If e was already queued its
// previous node is invalidated and left in the tree.
func (q *EventQueue) Insert(e WorldEvent) {
	b := e.base()
	if b.node != nil && b.node.valid {
		b.node.valid = false
		q.live--
	}
	q.seq++
	n := &eventNode{
		event: e,
		key:   nodeKey{date: b.triggerDate, id: b.id, seq: q.seq},
		valid: true,
	}
	b.node = n
	q.tree.Put(n.key, n)
	q.live++
}

// Remove invalidates e's node, if any.
func (q *EventQueue) Remove(e WorldEvent) {
	b := e.base()
	if b.node != nil && b.node.valid {
		b.node.valid = false
		q.live--
	}
	b.node = nil
}

// Peek returns the earliest valid event without removing it.
func (q *EventQueue) Peek() WorldEvent {
	for !q.tree.Empty() {
		left := q.tree.Left()
		n := left.Value.(*eventNode)
		if n.valid {
			return n.event
		}
		q.tree.Remove(left.Key)
	}
	return nil
}

// Pop removes and returns the earliest valid event.
func (q *EventQueue) Pop() WorldEvent {
	e := q.Peek()
	if e == nil {
		return nil
	}
	b := e.base()
	q.tree.Remove(b.node.key)
	b.node.valid = false
	b.node = nil
	q.live--
	return e
}

// Len is the number of valid events.
func (q *EventQueue) Len() int {
	return q.live
}

// Nodes is the number of tree nodes including invalidated ones.
func (q *EventQueue) Nodes() int {
	return q.tree.Size()
}

// Each visits valid events in trigger order.
func (q *EventQueue) Each(fn func(WorldEvent)) {
	it := q.tree.Iterator()
	for it.Next() {
		n := it.Value().(*eventNode)
		if n.valid {
			fn(n.event)
		}
	}
}
