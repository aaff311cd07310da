package command

// Diagnostic is a lex or parse error: reported to the caller and skipped,
// never aborting the rest of the batch.
type Diagnostic struct {
	Message string
}

func (d Diagnostic) String() string { return d.Message }
