package txn

import (
	"github.com/availdb/adb/lock"
	"github.com/availdb/adb/site"
)

// access records a successful read or write hit: the site it landed on and
// the logical time of the hit, used both for commit-time validation and to
// know which sites to release at commit/abort/kill.
type access struct {
	site *site.Site
	ts   int64
}

// ReadWrite is a strict-2PL transaction: every read and write goes through a
// site's FIFO lock, and commit re-validates every site it touched.
type ReadWrite struct {
	base

	catalog Catalog
	clock   Clock

	accessed []access
}

// NewReadWrite creates a read/write transaction named name, born at logical
// time createdAt.
func NewReadWrite(name string, createdAt int64, catalog Catalog, clock Clock) *ReadWrite {
	return &ReadWrite{
		base:    base{name: name, createdAt: createdAt, status: Created},
		catalog: catalog,
		clock:   clock,
	}
}

func (t *ReadWrite) QueueWrite(id int64, item string, value int64) {
	t.ops = append(t.ops, &Operation{ID: id, Kind: OpWrite, Item: item, Value: value})
}

// Aborted satisfies lock.Holder.
func (t *ReadWrite) Aborted() bool { return t.status == Aborted }

func (t *ReadWrite) Run(op *Operation) bool {
	switch op.Kind {
	case OpRead:
		return t.runRead(op)
	case OpWrite:
		return t.runWrite(op)
	case OpCommit:
		return t.runCommit()
	default:
		panic("txn: read/write transaction asked to run unknown operation kind")
	}
}

// runRead walks the item's hosting sites in order. The first running site
// to respond (granted or blocked) settles the call; a site that answers
// uninitialized is skipped in favor of the next one, since it has not yet
// received its first post-recovery write.
func (t *ReadWrite) runRead(op *Operation) bool {
	item, ok := t.catalog[op.Item]
	if !ok {
		panic("txn: read of unknown item " + op.Item)
	}
	t.blockers = nil
	for _, s := range item.Sites {
		if !s.IsRunning() {
			continue
		}
		now := t.clock.Now()
		res := s.Read(t, op.Item, !item.Replicated(), false, now)
		switch res.Outcome {
		case site.Granted:
			t.accessed = append(t.accessed, access{s, now})
			t.observed = append(t.observed, res.Value)
			t.advance()
			return true
		case site.Blocked:
			t.blockers = res.Blockers
			t.status = Blocked
			return false
		case site.Uninitialized:
			continue
		}
	}
	// every site was down or uninitialized: retry on a later tick
	t.status = Ready
	return false
}

// runWrite attempts the write on every currently running hosting site,
// stopping at the first one that blocks but leaving locks already acquired
// on earlier sites in place — they are released when the transaction
// eventually commits or aborts.
func (t *ReadWrite) runWrite(op *Operation) bool {
	item, ok := t.catalog[op.Item]
	if !ok {
		panic("txn: write of unknown item " + op.Item)
	}
	t.blockers = nil
	for _, s := range item.Sites {
		if !s.IsRunning() {
			continue
		}
		now := t.clock.Now()
		res := s.Write(t, op.Item, op.Value)
		if res.Outcome == site.Blocked {
			t.blockers = res.Blockers
			t.status = Blocked
			return false
		}
		t.accessed = append(t.accessed, access{s, now})
	}
	t.advance()
	return true
}

// runCommit validates every accessed site is still running and has not
// failed since the access, then commits or aborts at each such site.
func (t *ReadWrite) runCommit() bool {
	committable := true
	for _, a := range t.accessed {
		if !a.site.IsRunning() || !a.site.Available(a.ts) {
			committable = false
			break
		}
	}
	if committable {
		t.status = Committed
	} else {
		t.status = Aborted
	}
	t.settle()
	t.advance()
	return true
}

// Kill forcibly aborts the transaction outside the operation queue,
// releasing whatever locks it holds at every site it ever touched.
func (t *ReadWrite) Kill() {
	t.status = Aborted
	t.settle()
}

// settle releases the transaction's locks at every distinct running site it
// accessed, committing or discarding its pending writes there.
func (t *ReadWrite) settle() {
	seen := make(map[*site.Site]struct{}, len(t.accessed))
	for _, a := range t.accessed {
		if _, dup := seen[a.site]; dup {
			continue
		}
		seen[a.site] = struct{}{}
		if !a.site.IsRunning() {
			continue
		}
		if t.status == Committed {
			a.site.Commit(t, t.clock.Now())
		} else {
			a.site.Abort(t)
		}
	}
}

var _ Writer = (*ReadWrite)(nil)
var _ lock.Holder = (*ReadWrite)(nil)
