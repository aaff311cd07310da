// Package lock implements the per-item FIFO lock used by every site's lock
// table: read locks are shared, write locks are exclusive, and a holder
// that queues behind a conflicting request keeps its place strictly in
// arrival order, including read requests that arrive after a writer has
// already queued.
package lock

// Mode is the kind of lock a holder wants.
type Mode int

const (
	// None means the lock is currently unheld.
	None Mode = iota
	// Read is a shared lock: compatible with other Read holders.
	Read
	// Write is an exclusive lock.
	Write
)

func (m Mode) String() string {
	switch m {
	case Read:
		return "read"
	case Write:
		return "write"
	default:
		return "none"
	}
}

// Holder is the minimal view of a transaction that the lock table needs.
// It is an interface, not *txn.Transaction, so that lock has no dependency
// on the txn package: sites own lock tables, and holders are non-owning
// references into whatever is asking for the lock.
type Holder interface {
	// Name identifies the holder for logging and tie-breaking.
	Name() string
	// Aborted reports whether the holder has already been killed; aborted
	// holders are lazily evicted from the head of the wait queue.
	Aborted() bool
}

// Result is the outcome of an Acquire call: either the lock was granted, or
// Blockers names every holder (and queued waiter) the caller must now wait
// for before it can be retried.
type Result struct {
	Granted  bool
	Blockers []Holder
}

// System is the sentinel holder used to install initial values during
// database bring-up, standing in for the "no transaction" owner the
// original simulator passes when a data item writes its starting value.
var System Holder = systemHolder{}

type systemHolder struct{}

func (systemHolder) Name() string  { return "<init>" }
func (systemHolder) Aborted() bool { return false }

// FIFOLock is a single item's lock, owned by one site.
type FIFOLock struct {
	mode    Mode
	holders map[Holder]struct{}
	queue   []Holder
}

// New returns an unheld lock.
func New() *FIFOLock {
	return &FIFOLock{holders: make(map[Holder]struct{})}
}

// Acquire attempts to grant t the lock in the given mode, following the
// FIFO grant rules: a holder already holding a compatible (or stronger)
// mode is granted immediately; a read holder wanting to upgrade to write is
// granted only if it is the sole holder; a non-holder is granted only if
// the queue is empty or it is the queue head, and otherwise is appended to
// the queue's tail and told to wait for every current holder and waiter.
func (l *FIFOLock) Acquire(t Holder, mode Mode) Result {
	l.compactQueue()

	if _, held := l.holders[t]; held {
		if l.accepts(mode) {
			return Result{Granted: true}
		}
		// read -> write upgrade
		if l.mode == Read && mode == Write && len(l.holders) == 1 {
			if len(l.queue) > 0 && l.queue[0] == t {
				l.queue = l.queue[1:]
			}
			l.mode = Write
			return Result{Granted: true}
		}
		return Result{Blockers: l.holdersExcept(t)}
	}

	if l.mode == Read && mode == Read {
		if len(l.queue) == 0 {
			l.holders[t] = struct{}{}
			return Result{Granted: true}
		}
		if l.queue[0] == t {
			l.queue = l.queue[1:]
			l.holders[t] = struct{}{}
			return Result{Granted: true}
		}
	} else if l.mode == None {
		if len(l.queue) == 0 {
			l.mode = mode
			l.holders[t] = struct{}{}
			return Result{Granted: true}
		}
		if l.queue[0] == t {
			l.queue = l.queue[1:]
			l.mode = mode
			l.holders[t] = struct{}{}
			return Result{Granted: true}
		}
	}

	l.queue = append(l.queue, t)
	return Result{Blockers: l.othersExcept(t)}
}

// Release removes t from the holder set; if no holders remain the lock
// resets to unheld. Release does not grant queued waiters itself — they
// retry on a later dispatch and acquire once the queue head no longer
// conflicts, matching the original's lazy re-check model.
func (l *FIFOLock) Release(t Holder) {
	delete(l.holders, t)
	if len(l.holders) == 0 {
		l.mode = None
	}
}

// Mode reports the lock's current mode, for diagnostics/tests.
func (l *FIFOLock) Mode() Mode { return l.mode }

// HolderCount reports the current holder count, for diagnostics/tests.
func (l *FIFOLock) HolderCount() int { return len(l.holders) }

func (l *FIFOLock) accepts(mode Mode) bool {
	if l.mode == mode {
		return true
	}
	return l.mode == Write
}

// othersExcept returns every current holder and queued waiter other than t,
// the blocker set a newly-queued request must wait for.
func (l *FIFOLock) othersExcept(t Holder) []Holder {
	seen := make(map[Holder]struct{}, len(l.holders)+len(l.queue))
	out := make([]Holder, 0, len(l.holders)+len(l.queue))
	add := func(h Holder) {
		if h == t {
			return
		}
		if _, dup := seen[h]; dup {
			return
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	for h := range l.holders {
		add(h)
	}
	for _, h := range l.queue {
		add(h)
	}
	return out
}

// holdersExcept returns every current holder other than t, with no queue
// walk: an upgrade-blocked holder already holds the lock and has no real
// dependency on transactions merely queued behind it, so it must wait only
// for the other current holders.
func (l *FIFOLock) holdersExcept(t Holder) []Holder {
	out := make([]Holder, 0, len(l.holders))
	for h := range l.holders {
		if h == t {
			continue
		}
		out = append(out, h)
	}
	return out
}

// compactQueue drops the prefix of queued holders that have since aborted;
// abort is asynchronous to the queue (a transaction can die from deadlock
// resolution while still sitting in some other item's wait queue), so this
// lazy cleanup runs before every acquire attempt.
func (l *FIFOLock) compactQueue() {
	i := 0
	for i < len(l.queue) && l.queue[i].Aborted() {
		i++
	}
	l.queue = l.queue[i:]
}
