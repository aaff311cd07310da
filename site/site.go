// Package site implements a single storage site: a versioned history per
// item, an uncommitted write buffer, a lock table keyed by item name, and
// the fail/recover breakpoint sequence that governs replica availability.
package site

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/availdb/adb/internal/bsearch"
	"github.com/availdb/adb/lock"
)

// Status is a site's running/failed state.
type Status int

const (
	Running Status = iota
	Failed
)

func (s Status) String() string {
	if s == Running {
		return "running"
	}
	return "failed"
}

// Outcome tags the result of a Read or Write attempt.
type Outcome int

const (
	// Granted means the operation completed and produced a value (for
	// Read) or stored a pending write (for Write).
	Granted Outcome = iota
	// Blocked means a conflicting lock is held; Blockers names who to
	// wait for.
	Blocked
	// Unavailable means a read-only transaction's snapshot cannot be
	// served by this site (it was down, or the version predates the
	// site's most recent recovery).
	Unavailable
	// Uninitialized means a read/write transaction asked for a replicated
	// item that has no pending write at this site and no committed version
	// at or after the site's last fail/recover breakpoint.
	Uninitialized
)

// ReadResult is what Site.Read returns.
type ReadResult struct {
	Outcome  Outcome
	Value    int64
	Blockers []lock.Holder
}

// WriteResult is what Site.Write returns.
type WriteResult struct {
	Outcome  Outcome
	Blockers []lock.Holder
}

type history struct {
	timestamps []int64
	values     []int64
}

type pending struct {
	owner lock.Holder
	value int64
}

// Site is one of the ten storage sites.
type Site struct {
	idx         int
	status      Status
	breakpoints []int64

	locks       map[string]*lock.FIFOLock
	histories   map[string]*history
	uncommitted map[string]pending

	log zerolog.Logger
}

// New creates a site with index idx (1-based), born at logical time birth.
func New(idx int, birth int64) *Site {
	return &Site{
		idx:         idx,
		status:      Running,
		breakpoints: []int64{birth},
		locks:       make(map[string]*lock.FIFOLock),
		histories:   make(map[string]*history),
		uncommitted: make(map[string]pending),
		log:         zerolog.Nop().With().Int("site", idx).Logger(),
	}
}

// SetLogger attaches a component logger (from the cmd entry point); sites
// are otherwise silent.
func (s *Site) SetLogger(l zerolog.Logger) {
	s.log = l.With().Int("site", s.idx).Logger()
}

// Index is the site's 1-based identifier.
func (s *Site) Index() int { return s.idx }

// StatusNow reports running/failed.
func (s *Site) StatusNow() Status { return s.status }

// IsRunning is shorthand for StatusNow() == Running.
func (s *Site) IsRunning() bool { return s.status == Running }

// Fail transitions a running site to failed, recording a breakpoint.
func (s *Site) Fail(now int64) {
	if s.status != Running {
		return
	}
	s.status = Failed
	s.breakpoints = append(s.breakpoints, now)
	s.log.Info().Int64("now", now).Msg("site failed")
}

// Recover transitions a failed site back to running. Locks and uncommitted
// writes do not survive the cycle; committed history does.
func (s *Site) Recover(now int64) {
	if s.status != Failed {
		return
	}
	s.status = Running
	s.locks = make(map[string]*lock.FIFOLock)
	s.uncommitted = make(map[string]pending)
	s.breakpoints = append(s.breakpoints, now)
	s.log.Info().Int64("now", now).Msg("site recovered")
}

// lastBreakpoint is the timestamp of the most recent fail/recover event.
func (s *Site) lastBreakpoint() int64 {
	return s.breakpoints[len(s.breakpoints)-1]
}

// Available reports whether the site was continuously running from ts to
// now, used by commit-time validation: ts must be strictly after the last
// breakpoint.
func (s *Site) Available(ts int64) bool {
	if !s.IsRunning() {
		panic("site.Available called on a failed site")
	}
	return ts > s.lastBreakpoint()
}

// Read serves a read for holder t on item x. singleSite tells Read whether
// x is hosted only here (bypassing the availability/uninitialized checks
// that only apply to replicated items). For a read-only transaction, ts is
// its snapshot timestamp; for a read/write transaction ts is ignored.
func (s *Site) Read(t lock.Holder, item string, singleSite bool, readOnly bool, ts int64) ReadResult {
	if !s.IsRunning() {
		panic("site.Read called on a failed site")
	}
	if readOnly {
		return s.readSnapshot(item, singleSite, ts)
	}
	return s.readLocking(t, item, singleSite)
}

func (s *Site) readSnapshot(item string, singleSite bool, ts int64) ReadResult {
	h := s.histories[item]
	if h == nil || len(h.timestamps) == 0 {
		panic(fmt.Sprintf("site %d: no version history for %s", s.idx, item))
	}
	floor := floorIndex(h.timestamps, ts)
	if floor < 0 {
		panic(fmt.Sprintf("site %d: no committed version of %s at or before %d", s.idx, item, ts))
	}
	if singleSite {
		return ReadResult{Outcome: Granted, Value: h.values[floor]}
	}
	j := floorIndex(s.breakpoints, ts)
	if j < 0 {
		panic(fmt.Sprintf("site %d: no breakpoint at or before %d", s.idx, ts))
	}
	if j%2 == 1 {
		return ReadResult{Outcome: Unavailable}
	}
	if h.timestamps[floor] < s.breakpoints[j] {
		return ReadResult{Outcome: Unavailable}
	}
	return ReadResult{Outcome: Granted, Value: h.values[floor]}
}

func (s *Site) readLocking(t lock.Holder, item string, singleSite bool) ReadResult {
	if !s.initialized(item, singleSite) {
		return ReadResult{Outcome: Uninitialized}
	}
	result := s.acquire(item, t, lock.Read)
	if !result.Granted {
		return ReadResult{Outcome: Blocked, Blockers: result.Blockers}
	}
	if p, ok := s.uncommitted[item]; ok {
		return ReadResult{Outcome: Granted, Value: p.value}
	}
	h := s.histories[item]
	return ReadResult{Outcome: Granted, Value: h.values[len(h.values)-1]}
}

// Write attempts to acquire the write lock for t on item and, on success,
// buffers value as the pending write. A never-before-written replicated
// item's first write at this site is the initialization path: the lock
// table has no prior entry for it, so the lock is granted unconditionally.
func (s *Site) Write(t lock.Holder, item string, value int64) WriteResult {
	if !s.IsRunning() {
		panic("site.Write called on a failed site")
	}
	result := s.acquire(item, t, lock.Write)
	if !result.Granted {
		return WriteResult{Outcome: Blocked, Blockers: result.Blockers}
	}
	s.uncommitted[item] = pending{owner: t, value: value}
	return WriteResult{Outcome: Granted}
}

// Commit archives every pending write owned by t into history and releases
// every lock t holds.
func (s *Site) Commit(t lock.Holder, now int64) {
	s.finish(t, now, true)
}

// Abort discards every pending write owned by t and releases every lock it
// holds.
func (s *Site) Abort(t lock.Holder) {
	s.finish(t, 0, false)
}

func (s *Site) finish(t lock.Holder, now int64, committing bool) {
	if !s.IsRunning() {
		panic("site.Commit/Abort called on a failed site")
	}
	for item, p := range s.uncommitted {
		if p.owner != t {
			continue
		}
		if committing {
			s.archive(item, now, p.value)
		}
		delete(s.uncommitted, item)
	}
	for _, l := range s.locks {
		l.Release(t)
	}
}

func (s *Site) archive(item string, ts, value int64) {
	h := s.histories[item]
	if h == nil {
		h = &history{}
		s.histories[item] = h
	}
	if len(h.timestamps) > 0 && h.timestamps[len(h.timestamps)-1] >= ts {
		panic(fmt.Sprintf("site %d: non-increasing commit timestamp for %s", s.idx, item))
	}
	h.timestamps = append(h.timestamps, ts)
	h.values = append(h.values, value)
}

func (s *Site) acquire(item string, t lock.Holder, mode lock.Mode) lock.Result {
	l, ok := s.locks[item]
	if !ok {
		l = lock.New()
		s.locks[item] = l
	}
	return l.Acquire(t, mode)
}

// initialized reports whether item is usable at this site for a read/write
// transaction: it has a pending write, or it isn't replicated (a single-site
// item is always considered initialized once constructed), or its newest
// committed version is no older than the site's last fail/recover
// breakpoint. That last condition means a replicated item goes back to
// uninitialized the moment a site recovers, until a fresh write lands here —
// a recovered site must not keep serving a read/write transaction the stale
// value it held before it went down.
func (s *Site) initialized(item string, singleSite bool) bool {
	if _, pending := s.uncommitted[item]; pending {
		return true
	}
	if singleSite {
		return true
	}
	h := s.histories[item]
	if h == nil || len(h.timestamps) == 0 {
		return false
	}
	return h.timestamps[len(h.timestamps)-1] >= s.lastBreakpoint()
}

// CommittedValue returns the newest committed value for item at this site,
// used by dump; it ignores any pending uncommitted write and is available
// even while the site is down (dump reads whatever history exists).
func (s *Site) CommittedValue(item string) (int64, bool) {
	h := s.histories[item]
	if h == nil || len(h.values) == 0 {
		return 0, false
	}
	return h.values[len(h.values)-1], true
}

// floorIndex returns the greatest index i with sorted[i] <= ts, or -1.
func floorIndex(sorted []int64, ts int64) int {
	return bsearch.FloorBy(len(sorted), func(i int) int {
		if sorted[i] <= ts {
			return -1
		}
		return 1
	})
}
