package cache

import (
	"context"

	"github.com/bassista/tankwatch/internal/model"
)

// SnapshotReader is the minimal cache API for read-only consumers.
type SnapshotReader interface {
	Get(storeID string) (model.StoreCacheEntry, bool)
	GetDiagnostics() Diagnostics
}

// RefreshStore is the cache API the refresh pipeline needs.
type RefreshStore interface {
	SnapshotReader
	NeedsRefresh(entry model.StoreCacheEntry) bool
	Merge(storeID string, fresh map[string]model.TankSnapshot) model.StoreCacheEntry
	Save(ctx context.Context, storeID string) error
}
