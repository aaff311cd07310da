package txn

import (
	"testing"

	"github.com/availdb/adb/dataitem"
	"github.com/availdb/adb/site"
)

type fakeClock struct{ now int64 }

func (c *fakeClock) Now() int64 { return c.now }

func newCatalog(sites []*site.Site, nums ...int) Catalog {
	cat := make(Catalog)
	for _, n := range nums {
		d := dataitem.New(n, sites)
		cat[d.Name] = d
	}
	return cat
}

func newSites() []*site.Site {
	sites := make([]*site.Site, dataitem.SiteCount)
	for i := range sites {
		sites[i] = site.New(i+1, 0)
	}
	return sites
}

func TestReadWriteSingleSiteCommit(t *testing.T) {
	sites := newSites()
	cat := newCatalog(sites, 1) // x1, odd, single site
	clock := &fakeClock{now: 1}

	tx := NewReadWrite("T1", 0, cat, clock)
	tx.QueueWrite(1, "x1", 99)
	tx.QueueCommit(2)
	tx.SetStatus(Running)

	if !tx.Run(tx.NextOperation()) {
		t.Fatalf("expected write to advance")
	}
	clock.now = 2
	if !tx.Run(tx.NextOperation()) {
		t.Fatalf("expected commit to advance")
	}
	if tx.Status() != Committed {
		t.Fatalf("expected committed, got %s", tx.Status())
	}
	v, ok := cat["x1"].Sites[0].CommittedValue("x1")
	if !ok || v != 99 {
		t.Fatalf("expected committed x1=99, got %d ok=%v", v, ok)
	}
}

func TestReadWriteUpgradeOnSameItem(t *testing.T) {
	sites := newSites()
	cat := newCatalog(sites, 1)
	clock := &fakeClock{now: 1}

	tx := NewReadWrite("T1", 0, cat, clock)
	tx.QueueRead(1, "x1")
	tx.QueueWrite(2, "x1", 7)
	tx.SetStatus(Running)

	if !tx.Run(tx.NextOperation()) {
		t.Fatalf("expected read to advance")
	}
	if got := tx.Observed(); len(got) != 1 || got[0] != 10 {
		t.Fatalf("expected observed [10], got %v", got)
	}
	if !tx.Run(tx.NextOperation()) {
		t.Fatalf("expected write (lock upgrade) to advance without blocking")
	}
}

func TestReadWriteBlocksOnConflictingWriter(t *testing.T) {
	sites := newSites()
	cat := newCatalog(sites, 1)
	clock := &fakeClock{now: 1}

	t1 := NewReadWrite("T1", 0, cat, clock)
	t1.QueueWrite(1, "x1", 1)
	t1.SetStatus(Running)
	t1.Run(t1.NextOperation())

	t2 := NewReadWrite("T2", 1, cat, clock)
	t2.QueueWrite(2, "x1", 2)
	t2.SetStatus(Running)
	if advanced := t2.Run(t2.NextOperation()); advanced {
		t.Fatalf("expected T2 to block on T1's write lock")
	}
	if t2.Status() != Blocked {
		t.Fatalf("expected T2 blocked, got %s", t2.Status())
	}
	if len(t2.Blockers()) != 1 || t2.Blockers()[0].Name() != "T1" {
		t.Fatalf("expected T2 blocked on T1, got %v", t2.Blockers())
	}
}

func TestReadOnlySnapshotSkipsDownSite(t *testing.T) {
	sites := newSites()
	cat := newCatalog(sites, 2) // x2, even, replicated to all sites
	sites[0].Fail(1)           // site 1 down

	ro := NewReadOnly("T1", 5, cat)
	ro.SetStatus(Running)
	ro.QueueRead(1, "x2")
	if !ro.Run(ro.NextOperation()) {
		t.Fatalf("expected read to find a running replica")
	}
	if got := ro.Observed(); len(got) != 1 || got[0] != 20 {
		t.Fatalf("expected observed [20], got %v", got)
	}
}

func TestReadOnlyCannotWrite(t *testing.T) {
	sites := newSites()
	cat := newCatalog(sites, 2)
	ro := NewReadOnly("T1", 0, cat)
	var tx Transaction = ro
	if _, ok := tx.(Writer); ok {
		t.Fatalf("read-only transaction must not satisfy Writer")
	}
}

func TestKillReleasesLocks(t *testing.T) {
	sites := newSites()
	cat := newCatalog(sites, 1)
	clock := &fakeClock{now: 1}

	t1 := NewReadWrite("T1", 0, cat, clock)
	t1.QueueWrite(1, "x1", 1)
	t1.SetStatus(Running)
	t1.Run(t1.NextOperation())

	t1.Kill()
	if t1.Status() != Aborted {
		t.Fatalf("expected aborted after kill")
	}

	t2 := NewReadWrite("T2", 1, cat, clock)
	t2.QueueWrite(2, "x1", 2)
	t2.SetStatus(Running)
	if !t2.Run(t2.NextOperation()) {
		t.Fatalf("expected T2 to acquire the lock T1 released on kill")
	}
}
