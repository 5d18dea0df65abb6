package partition

import "github.com/replicated-store/guardian/proposal"

// ActionQueue is a per-partition FIFO of externally-supplied planned actions
// awaiting validation by guardian.Validator. It is the Go shape of spec's
// lb_actions: a plain ordered queue, not a channel — there is no concurrent
// producer/consumer here, only the single serialized tick for this
// partition's shard.
type ActionQueue struct {
	items []proposal.Action
}

// Push appends action to the back of the queue.
func (q *ActionQueue) Push(action proposal.Action) {
	q.items = append(q.items, action)
}

// Pop removes and returns the head of the queue. ok is false if the queue
// was empty. The validator always pops the head exactly once per decision,
// whether or not the popped action turns out to be valid; a rejected action
// is never re-queued.
func (q *ActionQueue) Pop() (proposal.Action, bool) {
	if len(q.items) == 0 {
		return proposal.Action{}, false
	}
	head := q.items[0]
	q.items = q.items[1:]
	return head, true
}

// Len reports the number of queued actions.
func (q *ActionQueue) Len() int {
	return len(q.items)
}

// Assign replaces the queue's contents wholesale, as a higher-level balancer
// does when it computes a fresh batch of planned actions.
func (q *ActionQueue) Assign(actions []proposal.Action) {
	q.items = append([]proposal.Action(nil), actions...)
}
