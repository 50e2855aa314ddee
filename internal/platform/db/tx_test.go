package db

import (
	"testing"

	"github.com/jackc/pgx/v5"
)

// Tree mutations block on an advisory lock and then re-read bounds that a
// prior writer may have renumbered. Pin the isolation level so the re-read
// keeps seeing committed rows instead of a stale snapshot.
func TestWithTxRunsReadCommitted(t *testing.T) {
	if txOptions.IsoLevel != pgx.ReadCommitted {
		t.Fatalf("tx isolation = %q, want %q", txOptions.IsoLevel, pgx.ReadCommitted)
	}
}
