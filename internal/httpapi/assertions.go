package httpapi

import (
	"github.com/tinoosan/cashflow/internal/jobs"
	"github.com/tinoosan/cashflow/internal/storage/memory"
	"github.com/tinoosan/cashflow/internal/storage/postgres"
)

// Compile-time interface assertions for the collaborators main wires in.
var (
	_ Jobs         = (*jobs.Runner)(nil)
	_ ReadyChecker = (*memory.Store)(nil)
	_ ReadyChecker = (*postgres.Store)(nil)
)
