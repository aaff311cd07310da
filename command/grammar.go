package command

// Program is a batch of semicolon-separated statements, corresponding to one
// line of input from the driver. adb.py's grammar accepts an empty stmtlist
// and a trailing separator, so both are permitted here too.
type Program struct {
	Statements []*Statement `( @@ ( ";" @@ )* )? ";"?`
}

// Statement is the union of every command the language accepts. Exactly one
// field is non-nil after a successful parse.
type Statement struct {
	Quit     *QuitStmt     `  @@`
	Begin    *BeginStmt    `| @@`
	BeginRO  *BeginROStmt  `| @@`
	Read     *ReadStmt     `| @@`
	Write    *WriteStmt    `| @@`
	End      *EndStmt      `| @@`
	Fail     *FailStmt     `| @@`
	Recover  *RecoverStmt  `| @@`
	DumpAll  *DumpAllStmt  `| @@`
	DumpItem *DumpItemStmt `| @@`
	DumpSite *DumpSiteStmt `| @@`
}

type QuitStmt struct {
	Quit bool `@"quit"`
}

type BeginStmt struct {
	Name string `"begin" "(" @Ident ")"`
}

type BeginROStmt struct {
	Name string `"beginro" "(" @Ident ")"`
}

type ReadStmt struct {
	Txn  string `"r" "(" @Ident ","`
	Item string `@Ident ")"`
}

type WriteStmt struct {
	Txn   string `"w" "(" @Ident ","`
	Item  string `@Ident ","`
	Value int64  `@Number ")"`
}

type EndStmt struct {
	Name string `"end" "(" @Ident ")"`
}

type FailStmt struct {
	Site int `"fail" "(" @Number ")"`
}

type RecoverStmt struct {
	Site int `"recover" "(" @Number ")"`
}

type DumpAllStmt struct {
	Dump bool `"dump" "(" ")"`
}

type DumpItemStmt struct {
	Item string `"dump" "(" @Ident ")"`
}

type DumpSiteStmt struct {
	Site int `"dump" "(" @Number ")"`
}
