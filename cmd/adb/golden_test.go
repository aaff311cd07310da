package main

import (
	"bytes"
	"strings"
	"testing"
)

// driveScript runs one script through the same loop main() uses and returns
// everything written to stdout. Blank trailing lines simply advance the
// clock with nothing new to parse, the only way (short of a no-op command)
// to give already-queued operations the extra ticks they need to resolve,
// matching adb.py's one-operation-dispatched-per-transaction-per-tick rule.
func driveScript(t *testing.T, lines ...string) string {
	t.Helper()
	var buf bytes.Buffer
	if err := run(strings.NewReader(strings.Join(lines, "\n")), &buf); err != nil {
		t.Fatalf("run: %v", err)
	}
	return buf.String()
}

func blanks(n int) []string {
	out := make([]string, n)
	return out
}

// S2 — write-read ordering with 2PL.
func TestGoldenWriteReadOrdering(t *testing.T) {
	lines := append([]string{
		"begin(T1); begin(T2); w(T1,x1,101); r(T2,x1); end(T1); end(T2)",
	}, blanks(4)...)
	out := driveScript(t, lines...)
	if !strings.Contains(out, "T1 commits") {
		t.Fatalf("expected T1 to commit, got %q", out)
	}
	if !strings.Contains(out, "T2 commits 101") {
		t.Fatalf("expected T2 to commit having observed 101, got %q", out)
	}
}

// S3 — cycle, youngest aborts.
func TestGoldenDeadlockKillsYoungest(t *testing.T) {
	lines := append([]string{
		"begin(T1); begin(T2); w(T1,x1,1); w(T2,x2,2); w(T1,x2,3); w(T2,x1,4); end(T1); end(T2)",
	}, blanks(6)...)
	out := driveScript(t, lines...)
	if !strings.Contains(out, "T2 aborts") {
		t.Fatalf("expected T2 (younger) to abort, got %q", out)
	}
	if !strings.Contains(out, "T1 commits") {
		t.Fatalf("expected T1 to commit, got %q", out)
	}
}

// S6 — read-lock upgrade, no deadlock.
func TestGoldenReadLockUpgrade(t *testing.T) {
	lines := append([]string{
		"begin(T1); r(T1,x1); w(T1,x1,7); end(T1)",
	}, blanks(4)...)
	out := driveScript(t, lines...)
	if !strings.Contains(out, "T1 commits") {
		t.Fatalf("expected T1 to commit cleanly, got %q", out)
	}
	if strings.Contains(out, "T1 aborts") {
		t.Fatalf("T1 should never abort on an uncontended upgrade, got %q", out)
	}
}

// S1 — read-only snapshot survives a later failure of one replica. x2 is
// replicated on every site in index order, so failing site 1 forces both
// reads to be served from site 2 onward instead of aborting the snapshot.
func TestGoldenReadOnlySnapshotAcrossFailure(t *testing.T) {
	lines := append([]string{
		"beginro(T1); beginro(T2); fail(1); r(T1,x2); r(T2,x2); end(T1); end(T2)",
	}, blanks(5)...)
	out := driveScript(t, lines...)
	if !strings.Contains(out, "T1 commits 20") {
		t.Fatalf("expected T1 to observe x2=20, got %q", out)
	}
	if !strings.Contains(out, "T2 commits 20") {
		t.Fatalf("expected T2 to observe x2=20, got %q", out)
	}
}

// S4 — commit validation aborts a transaction that read from a site which
// later failed before the transaction could commit.
func TestGoldenCommitValidationAbortsAfterFail(t *testing.T) {
	// x4 is replicated on every site in index order, so an uncontended read
	// is served by site 1 first; failing that same site before commit must
	// invalidate T1 at commit-time validation. A new transaction's first
	// operation runs on the tick after its begin line, and a line's fail runs
	// after that line's tick, so the fail goes on a later line than the read.
	lines := append([]string{
		"begin(T1); r(T1,x4)",
		"",
		"fail(1)",
		"end(T1)",
	}, blanks(3)...)
	out := driveScript(t, lines...)
	if !strings.Contains(out, "T1 aborts") {
		t.Fatalf("expected T1 to abort after its read site failed, got %q", out)
	}
}

func TestGoldenIllegalCharacterIsReportedInline(t *testing.T) {
	out := driveScript(t, "begin(T1) ~ junk")
	if !strings.Contains(out, "Illegal character") {
		t.Fatalf("expected an illegal-character diagnostic, got %q", out)
	}
}

func TestGoldenQuitStopsTheLoop(t *testing.T) {
	out := driveScript(t, "quit", "begin(T1)")
	if strings.Contains(out, "T1") {
		t.Fatalf("quit should stop processing before the next line, got %q", out)
	}
}
