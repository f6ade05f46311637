// Package ledger defines the AssetLedger collaborator consumed by the
// coordinator, with an in-memory implementation and an HTTP client.
package ledger

import (
	"context"
	"errors"
)

var (
	// ErrAssetNotFound reports an asset id unknown to the ledger.
	ErrAssetNotFound = errors.New("asset not found")
	// ErrRejected reports that the ledger refused a mutation.
	ErrRejected = errors.New("ledger rejected mutation")
	// ErrUnavailable reports a transient ledger failure worth retrying.
	ErrUnavailable = errors.New("ledger unavailable")
)

// Asset is the ledger view of one asset.
type Asset struct {
	ID     string `json:"asset_id"`
	Owner  string `json:"owner"`
	Status string `json:"status"`
}

// Ledger owns asset identity, ownership and status.
type Ledger interface {
	GetAsset(ctx context.Context, assetID string) (Asset, error)
	TransferAsset(ctx context.Context, assetID, newOwner string) error
	UpdateStatus(ctx context.Context, assetID, status string) error
}

// Transient reports whether err is worth retrying later.
func Transient(err error) bool {
	return errors.Is(err, ErrUnavailable) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}
