package command

import (
	"fmt"
	"io"

	"github.com/availdb/adb/dump"
)

// Engine is everything a parsed Program needs to act: the transaction
// operations dispatched immediately, plus the site/catalog view dump needs
// for its deferred output.
type Engine interface {
	Begin(name string) error
	BeginReadOnly(name string) error
	Read(txn, item string) error
	Write(txn, item string, value int64) error
	End(name string) error
	Fail(idx int) error
	Recover(idx int) error
	dump.Sites
}

// Batch is the result of executing a Program: immediate operations (begin,
// beginro, r, w, end) have already run against the engine by the time
// Execute returns; Deferred holds the operations that must wait until after
// the next tick (fail, recover, dump), mirroring adb.py's main loop which
// parses and registers a line's reads/writes before advancing the clock, but
// runs fail/recover/dump only after tm.next_tick() returns.
type Batch struct {
	Deferred []func(e Engine, w io.Writer)
	Quit     bool
}

// Execute walks a parsed Program, applying begin/beginro/r/w/end against e
// immediately and queuing fail/recover/dump/quit for later. Errors from
// immediate operations become diagnostics rather than aborting the batch.
func Execute(p *Program, e Engine) (Batch, []Diagnostic) {
	var batch Batch
	var diags []Diagnostic

	report := func(err error) {
		if err != nil {
			diags = append(diags, Diagnostic{Message: err.Error()})
		}
	}

	for _, stmt := range p.Statements {
		switch {
		case stmt.Quit != nil:
			batch.Quit = true

		case stmt.Begin != nil:
			report(e.Begin(stmt.Begin.Name))

		case stmt.BeginRO != nil:
			report(e.BeginReadOnly(stmt.BeginRO.Name))

		case stmt.Read != nil:
			report(e.Read(stmt.Read.Txn, stmt.Read.Item))

		case stmt.Write != nil:
			report(e.Write(stmt.Write.Txn, stmt.Write.Item, stmt.Write.Value))

		case stmt.End != nil:
			report(e.End(stmt.End.Name))

		case stmt.Fail != nil:
			idx := stmt.Fail.Site
			batch.Deferred = append(batch.Deferred, func(e Engine, w io.Writer) {
				if err := e.Fail(idx); err != nil {
					fmt.Fprintln(w, err)
				}
			})

		case stmt.Recover != nil:
			idx := stmt.Recover.Site
			batch.Deferred = append(batch.Deferred, func(e Engine, w io.Writer) {
				if err := e.Recover(idx); err != nil {
					fmt.Fprintln(w, err)
				}
			})

		case stmt.DumpAll != nil:
			batch.Deferred = append(batch.Deferred, func(e Engine, w io.Writer) {
				dump.Print(w, dump.All(e))
			})

		case stmt.DumpItem != nil:
			name := stmt.DumpItem.Item
			batch.Deferred = append(batch.Deferred, func(e Engine, w io.Writer) {
				rows, err := dump.Item(e, name)
				if err != nil {
					fmt.Fprintln(w, err)
					return
				}
				dump.Print(w, rows)
			})

		case stmt.DumpSite != nil:
			idx := stmt.DumpSite.Site
			batch.Deferred = append(batch.Deferred, func(e Engine, w io.Writer) {
				rows, err := dump.Site(e, idx)
				if err != nil {
					fmt.Fprintln(w, err)
					return
				}
				dump.Print(w, rows)
			})
		}
	}

	return batch, diags
}
