package dataitem

import (
	"testing"

	"github.com/availdb/adb/site"
)

func newSites() []*site.Site {
	sites := make([]*site.Site, SiteCount)
	for i := range sites {
		sites[i] = site.New(i+1, 0)
	}
	return sites
}

func TestPlacementOddIsSingleSite(t *testing.T) {
	idxs := PlacementSiteIndexes(7)
	if len(idxs) != 1 || idxs[0] != 1+7%10 {
		t.Fatalf("x7 expected single site %d, got %v", 1+7%10, idxs)
	}
}

func TestPlacementEvenIsAllSites(t *testing.T) {
	idxs := PlacementSiteIndexes(4)
	if len(idxs) != SiteCount {
		t.Fatalf("x4 expected all %d sites, got %d", SiteCount, len(idxs))
	}
}

func TestNewInstallsInitialValue(t *testing.T) {
	sites := newSites()
	d := New(4, sites)
	if d.Name != "x4" {
		t.Fatalf("expected name x4, got %s", d.Name)
	}
	if !d.Replicated() {
		t.Fatalf("x4 expected to be replicated")
	}
	for _, s := range d.Sites {
		v, ok := s.CommittedValue("x4")
		if !ok || v != 40 {
			t.Fatalf("site %d expected committed x4=40, got %d ok=%v", s.Index(), v, ok)
		}
	}
}

func TestNewOddItemSingleSite(t *testing.T) {
	sites := newSites()
	d := New(11, sites)
	if len(d.Sites) != 1 {
		t.Fatalf("x11 expected single site, got %d", len(d.Sites))
	}
	v, ok := d.Sites[0].CommittedValue("x11")
	if !ok || v != 110 {
		t.Fatalf("expected committed x11=110, got %d ok=%v", v, ok)
	}
}
