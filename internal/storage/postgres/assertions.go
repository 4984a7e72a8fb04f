package postgres

import "github.com/tinoosan/cashflow/internal/storage"

var (
	_ storage.Store = (*Store)(nil)
	_ storage.Tx    = (*Tx)(nil)
)
