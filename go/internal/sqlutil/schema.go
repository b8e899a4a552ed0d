package sqlutil

import (
	_ "embed"
)

// Schema creates every table the draft service reads or writes. Each
// statement is idempotent.
//
//go:embed schema.sql
var Schema string
