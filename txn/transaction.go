// Package txn implements the two transaction variants — read/write under
// strict two-phase locking and read-only under snapshot isolation — as
// distinct structs satisfying a shared, minimal Transaction interface.
// Rather than an inheritance hierarchy, capability is expressed structurally:
// only a read/write transaction additionally satisfies Writer, so a
// read-only transaction cannot be handed a write operation at all.
package txn

import (
	"github.com/availdb/adb/dataitem"
	"github.com/availdb/adb/lock"
)

// Clock is the minimal view of the manager's logical clock a transaction
// needs to stamp its own accesses. It is an interface, not *engine.Manager,
// so txn has no dependency on engine.
type Clock interface {
	Now() int64
}

// Catalog maps an item name to its placement, letting a transaction find the
// sites it must visit for a given item.
type Catalog map[string]*dataitem.DataItem

// Transaction is the surface the engine dispatches against. Name/CreatedAt
// are fixed at construction; Status/SetStatus track lifecycle; NextOperation
// peeks the transaction's own operation queue (transactions own their
// queue, per the data model); Run executes exactly one operation and reports
// whether the cursor advanced. Blockers is only meaningful immediately after
// a Run call returns false because of a lock conflict — the engine reads it
// once to fold the conflict into its own wait-for graph, which it owns
// centrally to avoid cross-transaction ownership cycles.
type Transaction interface {
	Name() string
	CreatedAt() int64
	Status() Status
	SetStatus(Status)

	QueueRead(id int64, item string)
	QueueCommit(id int64)

	NextOperation() *Operation
	Run(op *Operation) (advanced bool)
	Blockers() []lock.Holder
	Observed() []int64

	// Kill forcibly aborts the transaction outside the normal operation
	// queue, releasing whatever locks it holds. Used only by deadlock
	// victim selection.
	Kill()
	IsAborted() bool
}

// Writer is additionally satisfied by transactions that may execute writes.
// A read-only transaction has no QueueWrite method, so asking one to write
// is a compile-time impossibility rather than a runtime assertion failure.
type Writer interface {
	Transaction
	QueueWrite(id int64, item string, value int64)
}

// base holds the state common to both transaction variants: identity,
// lifecycle, and the operation queue/cursor each transaction owns.
type base struct {
	name      string
	createdAt int64
	status    Status

	ops    []*Operation
	cursor int

	observed []int64
	blockers []lock.Holder
}

func (b *base) Name() string       { return b.name }
func (b *base) CreatedAt() int64   { return b.createdAt }
func (b *base) Status() Status     { return b.status }
func (b *base) SetStatus(s Status) { b.status = s }
func (b *base) IsAborted() bool    { return b.status == Aborted }

func (b *base) QueueRead(id int64, item string) {
	b.ops = append(b.ops, &Operation{ID: id, Kind: OpRead, Item: item})
}

func (b *base) QueueCommit(id int64) {
	b.ops = append(b.ops, &Operation{ID: id, Kind: OpCommit})
}

func (b *base) NextOperation() *Operation {
	if b.cursor >= len(b.ops) {
		return nil
	}
	return b.ops[b.cursor]
}

func (b *base) Observed() []int64     { return b.observed }
func (b *base) Blockers() []lock.Holder { return b.blockers }

func (b *base) advance() { b.cursor++ }
