// Package dump formats the committed state of the simulated database for
// the `dump` command family: every item at every site, one item across its
// hosting sites, or every item at one site.
package dump

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/availdb/adb/dataitem"
	"github.com/availdb/adb/site"
	"github.com/availdb/adb/txn"
)

// Row is one (item, committed value, site) triple.
type Row struct {
	Item  string
	Value int64
	Site  int
}

// Sites is the read-only view dump needs of the manager: every site, in
// index order.
type Sites interface {
	Sites() []*site.Site
	Catalog() txn.Catalog
}

// All collects a row for every item at every one of its hosting sites.
func All(m Sites) []Row {
	var rows []Row
	for i := 1; i <= dataitem.Count; i++ {
		name := dataitem.Name(i)
		d, ok := m.Catalog()[name]
		if !ok {
			continue
		}
		for _, s := range d.Sites {
			if v, ok := s.CommittedValue(name); ok {
				rows = append(rows, Row{Item: name, Value: v, Site: s.Index()})
			}
		}
	}
	return rows
}

// Item collects a row for one named item at every site hosting it.
func Item(m Sites, name string) ([]Row, error) {
	d, ok := m.Catalog()[name]
	if !ok {
		return nil, fmt.Errorf("unknown item %s", name)
	}
	var rows []Row
	for _, s := range d.Sites {
		if v, ok := s.CommittedValue(name); ok {
			rows = append(rows, Row{Item: name, Value: v, Site: s.Index()})
		}
	}
	return rows, nil
}

// Site collects a row for every item committed at site idx.
func Site(m Sites, idx int) ([]Row, error) {
	sites := m.Sites()
	if idx < 1 || idx > len(sites) {
		return nil, fmt.Errorf("site index %d out of range 1..%d", idx, len(sites))
	}
	s := sites[idx-1]
	var rows []Row
	for i := 1; i <= dataitem.Count; i++ {
		name := dataitem.Name(i)
		d, ok := m.Catalog()[name]
		if !ok {
			continue
		}
		hosted := false
		for _, hs := range d.Sites {
			if hs.Index() == idx {
				hosted = true
				break
			}
		}
		if !hosted {
			continue
		}
		if v, ok := s.CommittedValue(name); ok {
			rows = append(rows, Row{Item: name, Value: v, Site: idx})
		}
	}
	return rows, nil
}

// Print writes the 80-`=` header followed by one line per row, sorted by
// (item, site) and with contiguous identical-(item,value) site runs
// compressed into an "a-b" range.
func Print(w io.Writer, rows []Row) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Item != rows[j].Item {
			return rows[i].Item < rows[j].Item
		}
		return rows[i].Site < rows[j].Site
	})

	fmt.Fprintln(w, strings.Repeat("=", 80))
	i := 0
	for i < len(rows) {
		j := i
		for j < len(rows) &&
			rows[j].Item == rows[i].Item &&
			rows[j].Value == rows[i].Value &&
			rows[j].Site-rows[i].Site == j-i {
			j++
		}
		if j-i == 1 {
			fmt.Fprintf(w, "%s: %d at site %d\n", rows[i].Item, rows[i].Value, rows[i].Site)
		} else {
			fmt.Fprintf(w, "%s: %d at site %d-%d\n", rows[i].Item, rows[i].Value, rows[i].Site, rows[j-1].Site)
		}
		i = j
	}
}
