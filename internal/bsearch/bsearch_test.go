package bsearch

import "testing"

func cmpInt(sorted []int64, target int64) func(int) int {
	return func(i int) int {
		switch {
		case sorted[i] < target:
			return -1
		case sorted[i] > target:
			return 1
		default:
			return 0
		}
	}
}

func TestBinarySearchByFindsExactMatch(t *testing.T) {
	sorted := []int64{2, 4, 6, 8, 10}
	idx, err := BinarySearchBy(len(sorted), cmpInt(sorted, 6))
	if err != nil || idx != 2 {
		t.Fatalf("expected index 2, got %d, err %v", idx, err)
	}
}

func TestBinarySearchByReportsInsertionPoint(t *testing.T) {
	sorted := []int64{2, 4, 6, 8, 10}
	idx, err := BinarySearchBy(len(sorted), cmpInt(sorted, 5))
	if err != ErrNotFound || idx != 2 {
		t.Fatalf("expected insertion point 2 with ErrNotFound, got %d, err %v", idx, err)
	}
}

func floorCmp(sorted []int64, ts int64) func(int) int {
	return func(i int) int {
		if sorted[i] <= ts {
			return -1
		}
		return 1
	}
}

func TestFloorByFindsGreatestAtOrBefore(t *testing.T) {
	sorted := []int64{0, 3, 3, 7, 12}
	if got := FloorBy(len(sorted), floorCmp(sorted, 9)); got != 3 {
		t.Fatalf("expected floor index 3 (value 7), got %d", got)
	}
	if got := FloorBy(len(sorted), floorCmp(sorted, 3)); got != 2 {
		t.Fatalf("expected floor index 2 (last entry equal to 3), got %d", got)
	}
}

func TestFloorByReturnsNegativeOneWhenNothingQualifies(t *testing.T) {
	sorted := []int64{5, 6, 7}
	if got := FloorBy(len(sorted), floorCmp(sorted, 1)); got != -1 {
		t.Fatalf("expected -1, got %d", got)
	}
}
