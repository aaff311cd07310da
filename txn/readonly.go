package txn

import (
	"github.com/availdb/adb/lock"
	"github.com/availdb/adb/site"
)

// ReadOnly is a snapshot transaction: it never acquires a lock and never
// blocks, so it never participates in the wait-for graph and can never be a
// deadlock victim.
type ReadOnly struct {
	base

	catalog  Catalog
	snapshot int64
}

// NewReadOnly creates a read-only transaction named name, whose snapshot is
// fixed at its creation time createdAt.
func NewReadOnly(name string, createdAt int64, catalog Catalog) *ReadOnly {
	return &ReadOnly{
		base:     base{name: name, createdAt: createdAt, status: Created},
		catalog:  catalog,
		snapshot: createdAt,
	}
}

// Aborted satisfies lock.Holder, though a read-only transaction is never
// actually offered as a lock holder since it never calls Site.Read with
// readOnly=false.
func (t *ReadOnly) Aborted() bool { return t.status == Aborted }

func (t *ReadOnly) Run(op *Operation) bool {
	switch op.Kind {
	case OpRead:
		return t.runRead(op)
	case OpCommit:
		t.status = Committed
		t.advance()
		return true
	default:
		panic("txn: read-only transaction asked to run unknown operation kind")
	}
}

// runRead iterates the item's hosting sites in order. The first running
// site able to serve the snapshot settles the read; an unavailable site is
// skipped in favor of the next replica.
func (t *ReadOnly) runRead(op *Operation) bool {
	item, ok := t.catalog[op.Item]
	if !ok {
		panic("txn: read of unknown item " + op.Item)
	}
	for _, s := range item.Sites {
		if !s.IsRunning() {
			continue
		}
		res := s.Read(t, op.Item, !item.Replicated(), true, t.snapshot)
		if res.Outcome == site.Granted {
			t.observed = append(t.observed, res.Value)
			t.advance()
			return true
		}
	}
	// no replica could serve the snapshot: retry on a later tick
	t.status = Ready
	return false
}

// Kill aborts the transaction. A read-only transaction holds no locks and
// has touched no uncommitted buffers, so there is nothing to release.
func (t *ReadOnly) Kill() {
	t.status = Aborted
}

var _ Transaction = (*ReadOnly)(nil)
var _ lock.Holder = (*ReadOnly)(nil)
