// Package engine implements the transaction manager: the global tick loop,
// FIFO operation dispatch, the centralized wait-for graph, and deadlock
// detection via strongly-connected components.
package engine

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/availdb/adb/dataitem"
	"github.com/availdb/adb/lock"
	"github.com/availdb/adb/site"
	"github.com/availdb/adb/txn"
)

// Report is one transaction's terminal outcome this tick, in the order the
// manager reached it, ready for the driver to print.
type Report struct {
	Name     string
	Aborted  bool
	Observed []int64
}

// Manager is the transaction manager: it owns the logical clock, the
// operation id counter, the ten sites, the catalog of twenty data items, and
// every transaction ever created. The wait-for graph lives here rather than
// on each transaction, so that graph edits never need a transaction to hold
// a reference to another transaction.
type Manager struct {
	now   int64
	opID  int64
	sites []*site.Site
	cat   txn.Catalog

	transactions []txn.Transaction
	byName       map[string]txn.Transaction

	waitFor  map[string]map[string]struct{}
	waitedBy map[string]map[string]struct{}

	reports []Report

	log zerolog.Logger
}

// New builds a manager with ten fresh sites and the twenty-item catalog,
// all initialized and committed at logical time 0.
func New() *Manager {
	sites := make([]*site.Site, dataitem.SiteCount)
	for i := range sites {
		sites[i] = site.New(i+1, 0)
	}
	cat := make(txn.Catalog, dataitem.Count)
	for i := 1; i <= dataitem.Count; i++ {
		d := dataitem.New(i, sites)
		cat[d.Name] = d
	}
	return &Manager{
		sites:    sites,
		cat:      cat,
		byName:   make(map[string]txn.Transaction),
		waitFor:  make(map[string]map[string]struct{}),
		waitedBy: make(map[string]map[string]struct{}),
		log:      zerolog.Nop(),
	}
}

// SetLogger attaches a component logger, propagated down to every site.
func (m *Manager) SetLogger(l zerolog.Logger) {
	m.log = l
	for _, s := range m.sites {
		s.SetLogger(l)
	}
}

// Now is the manager's logical clock, satisfying txn.Clock.
func (m *Manager) Now() int64 { return m.now }

// Sites exposes the site list read-only, for the dump package.
func (m *Manager) Sites() []*site.Site { return m.sites }

// Catalog exposes the item catalog read-only, for the dump package.
func (m *Manager) Catalog() txn.Catalog { return m.cat }

func (m *Manager) nextOpID() int64 {
	m.opID++
	return m.opID
}

// Begin creates a read/write transaction named name.
func (m *Manager) Begin(name string) error {
	if _, dup := m.byName[name]; dup {
		return fmt.Errorf("transaction %s already exists", name)
	}
	tx := txn.NewReadWrite(name, m.now, m.cat, m)
	m.register(tx)
	return nil
}

// BeginReadOnly creates a read-only transaction named name.
func (m *Manager) BeginReadOnly(name string) error {
	if _, dup := m.byName[name]; dup {
		return fmt.Errorf("transaction %s already exists", name)
	}
	tx := txn.NewReadOnly(name, m.now, m.cat)
	m.register(tx)
	return nil
}

func (m *Manager) register(tx txn.Transaction) {
	m.transactions = append(m.transactions, tx)
	m.byName[tx.Name()] = tx
}

// Read queues a read of item by transaction name.
func (m *Manager) Read(name, item string) error {
	tx, ok := m.byName[name]
	if !ok {
		return fmt.Errorf("unknown transaction %s", name)
	}
	if _, exists := m.cat[item]; !exists {
		return fmt.Errorf("unknown item %s", item)
	}
	tx.QueueRead(m.nextOpID(), item)
	return nil
}

// Write queues a write of value to item by transaction name. Returns an
// error if name does not identify a writable (read/write) transaction.
func (m *Manager) Write(name, item string, value int64) error {
	tx, ok := m.byName[name]
	if !ok {
		return fmt.Errorf("unknown transaction %s", name)
	}
	w, ok := tx.(txn.Writer)
	if !ok {
		return fmt.Errorf("%s is read-only and cannot write", name)
	}
	if _, exists := m.cat[item]; !exists {
		return fmt.Errorf("unknown item %s", item)
	}
	w.QueueWrite(m.nextOpID(), item, value)
	return nil
}

// End queues a commit of the named transaction.
func (m *Manager) End(name string) error {
	tx, ok := m.byName[name]
	if !ok {
		return fmt.Errorf("unknown transaction %s", name)
	}
	tx.QueueCommit(m.nextOpID())
	return nil
}

// Fail takes site idx (1..10) down, deferred by the driver until after the
// tick that observed the command.
func (m *Manager) Fail(idx int) error {
	s, err := m.site(idx)
	if err != nil {
		return err
	}
	s.Fail(m.now)
	return nil
}

// Recover brings site idx back up.
func (m *Manager) Recover(idx int) error {
	s, err := m.site(idx)
	if err != nil {
		return err
	}
	s.Recover(m.now)
	return nil
}

func (m *Manager) site(idx int) (*site.Site, error) {
	if idx < 1 || idx > len(m.sites) {
		return nil, fmt.Errorf("site index %d out of range 1..%d", idx, len(m.sites))
	}
	return m.sites[idx-1], nil
}

// Tick advances the logical clock by one and runs exactly one round of the
// manager's dispatch algorithm: promote ready transactions to running,
// dispatch every runnable transaction's next operation in global FIFO
// order, give transactions unblocked within this tick one extra dispatch,
// promote transactions created before this tick to ready, and finally run
// deadlock detection. It returns the terminal outcomes (commits, aborts,
// and deadlock kills) reached this tick, in the order they occurred.
func (m *Manager) Tick() []Report {
	m.now++
	m.reports = nil

	blockedSnapshot := m.filterStatus(txn.Blocked)

	for _, tx := range m.filterStatus(txn.Ready) {
		tx.SetStatus(txn.Running)
	}

	running := m.runnable()
	sortByNextOpID(running)
	for _, tx := range running {
		m.dispatch(tx)
	}

	var waked []txn.Transaction
	for _, tx := range blockedSnapshot {
		if tx.Status() == txn.Ready {
			waked = append(waked, tx)
		}
	}
	sortByNextOpID(waked)
	for _, tx := range waked {
		tx.SetStatus(txn.Running)
	}
	for _, tx := range waked {
		m.dispatch(tx)
	}

	for _, tx := range m.filterStatus(txn.Created) {
		tx.SetStatus(txn.Ready)
	}

	m.detectDeadlocks()

	return m.reports
}

func (m *Manager) filterStatus(s txn.Status) []txn.Transaction {
	var out []txn.Transaction
	for _, tx := range m.transactions {
		if tx.Status() == s {
			out = append(out, tx)
		}
	}
	return out
}

func (m *Manager) runnable() []txn.Transaction {
	var out []txn.Transaction
	for _, tx := range m.transactions {
		if tx.Status() == txn.Running && tx.NextOperation() != nil {
			out = append(out, tx)
		}
	}
	return out
}

func sortByNextOpID(list []txn.Transaction) {
	sort.Slice(list, func(i, j int) bool {
		return list[i].NextOperation().ID < list[j].NextOperation().ID
	})
}

// dispatch runs tx's next operation once. On a blocked result it folds the
// reported blockers into the centralized wait-for graph; on a terminal
// result it records a Report and excises tx from the graph.
func (m *Manager) dispatch(tx txn.Transaction) {
	op := tx.NextOperation()
	if op == nil {
		return
	}
	advanced := tx.Run(op)
	if !advanced {
		if tx.Status() == txn.Blocked {
			m.addWaitEdges(tx.Name(), tx.Blockers())
		}
		return
	}
	if tx.Status() == txn.Committed || tx.Status() == txn.Aborted {
		m.finish(tx)
	}
}

func (m *Manager) finish(tx txn.Transaction) {
	m.reports = append(m.reports, Report{
		Name:     tx.Name(),
		Aborted:  tx.Status() == txn.Aborted,
		Observed: append([]int64(nil), tx.Observed()...),
	})
	m.excise(tx.Name())
}

func (m *Manager) addWaitEdges(name string, blockers []lock.Holder) {
	for _, b := range blockers {
		bn := b.Name()
		if bn == name {
			continue
		}
		if m.waitFor[name] == nil {
			m.waitFor[name] = make(map[string]struct{})
		}
		m.waitFor[name][bn] = struct{}{}
		if m.waitedBy[bn] == nil {
			m.waitedBy[bn] = make(map[string]struct{})
		}
		m.waitedBy[bn][name] = struct{}{}
	}
}

// excise removes name from both sides of the wait-for graph. Any
// transaction that was waiting solely on name is promoted from blocked to
// ready, letting it retry within the very tick that unblocked it (see
// Tick's "waked" pass).
func (m *Manager) excise(name string) {
	for holder := range m.waitFor[name] {
		delete(m.waitedBy[holder], name)
	}
	delete(m.waitFor, name)

	for waiter := range m.waitedBy[name] {
		delete(m.waitFor[waiter], name)
		if len(m.waitFor[waiter]) == 0 {
			if tx, ok := m.byName[waiter]; ok && tx.Status() == txn.Blocked {
				tx.SetStatus(txn.Ready)
			}
		}
	}
	delete(m.waitedBy, name)
}
