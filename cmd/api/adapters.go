package main

import (
	"context"

	"github.com/UMHC/umhc-finance/internal/domain/finance"
)

// searchReindexer exposes the finance service's search reindex under the
// scheduler's contract.
type searchReindexer struct {
	finance *finance.Service
}

func (r *searchReindexer) RebuildIndex(ctx context.Context) (int, error) {
	return r.finance.Reindex(ctx)
}
