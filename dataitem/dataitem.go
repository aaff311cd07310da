// Package dataitem models the twenty named variables x1..x20 and their
// replication placement across the ten sites.
package dataitem

import (
	"fmt"

	"github.com/availdb/adb/lock"
	"github.com/availdb/adb/site"
)

// Count is the number of data items in the schema.
const Count = 20

// SiteCount is the number of storage sites.
const SiteCount = 10

// Name returns the canonical name of item i (1..20), e.g. Name(7) == "x7".
func Name(i int) string {
	return fmt.Sprintf("x%d", i)
}

// InitialValue is the value item i is born with: 10*i.
func InitialValue(i int) int64 {
	return int64(10 * i)
}

// PlacementSiteIndexes returns the 1-based site indexes hosting item i: a
// single site (1 + i mod 10) for odd i, or all ten sites for even i.
func PlacementSiteIndexes(i int) []int {
	if i%2 == 1 {
		return []int{1 + i%10}
	}
	idxs := make([]int, SiteCount)
	for s := 0; s < SiteCount; s++ {
		idxs[s] = s + 1
	}
	return idxs
}

// DataItem is one of x1..x20: a name and the fixed list of sites it lives
// on. Immutable after construction.
type DataItem struct {
	Name  string
	Num   int
	Sites []*site.Site
}

// Replicated reports whether the item is hosted on more than one site.
func (d *DataItem) Replicated() bool { return len(d.Sites) > 1 }

// New builds data item number i (1..20), selecting its hosting sites from
// allSites (indexed by 1-based site id at allSites[id-1]) and installing
// its initial committed value at logical time 0 on every hosting site.
func New(i int, allSites []*site.Site) *DataItem {
	if i < 1 || i > Count {
		panic(fmt.Sprintf("dataitem: item number %d out of range 1..%d", i, Count))
	}
	name := Name(i)
	placements := PlacementSiteIndexes(i)
	hosts := make([]*site.Site, 0, len(placements))
	for _, idx := range placements {
		hosts = append(hosts, allSites[idx-1])
	}

	d := &DataItem{Name: name, Num: i, Sites: hosts}
	initial := InitialValue(i)
	for _, s := range hosts {
		if r := s.Write(lock.System, name, initial); r.Outcome != site.Granted {
			panic(fmt.Sprintf("dataitem: initial write of %s on site %d unexpectedly blocked", name, s.Index()))
		}
		s.Commit(lock.System, 0)
	}
	return d
}
