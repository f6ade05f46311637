package ledger

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Operation names a ledger call for failure injection.
type Operation string

const (
	OpGetAsset      Operation = "get_asset"
	OpTransferAsset Operation = "transfer_asset"
	OpUpdateStatus  Operation = "update_status"
)

type failureKey struct {
	op      Operation
	assetID string
}

// Memory is an in-process ledger. Failures can be injected per asset and
// operation to exercise partial execution.
type Memory struct {
	mu       sync.Mutex
	assets   map[string]Asset
	failures map[failureKey]error
	calls    []string
}

// NewMemory returns a ledger seeded with assets.
func NewMemory(assets ...Asset) *Memory {
	m := &Memory{
		assets:   make(map[string]Asset, len(assets)),
		failures: make(map[failureKey]error),
	}
	for _, asset := range assets {
		m.assets[asset.ID] = asset
	}
	return m
}

// Put registers or replaces an asset.
func (m *Memory) Put(asset Asset) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assets[asset.ID] = asset
}

// Fail makes op on assetID return err until Clear is called.
func (m *Memory) Fail(op Operation, assetID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[failureKey{op: op, assetID: assetID}] = err
}

// Clear removes every injected failure.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = make(map[failureKey]error)
}

// Calls returns the mutation log as "op:asset" entries.
func (m *Memory) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// Asset returns the current asset state.
func (m *Memory) Asset(assetID string) (Asset, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	asset, ok := m.assets[assetID]
	return asset, ok
}

// GetAsset returns the asset or ErrAssetNotFound.
func (m *Memory) GetAsset(ctx context.Context, assetID string) (Asset, error) {
	if err := ctx.Err(); err != nil {
		return Asset{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failures[failureKey{op: OpGetAsset, assetID: assetID}]; err != nil {
		return Asset{}, err
	}
	asset, ok := m.assets[assetID]
	if !ok {
		return Asset{}, fmt.Errorf("%w: %s", ErrAssetNotFound, assetID)
	}
	return asset, nil
}

// TransferAsset sets a new owner.
func (m *Memory) TransferAsset(ctx context.Context, assetID, newOwner string) error {
	return m.mutate(ctx, OpTransferAsset, assetID, func(asset *Asset) error {
		if strings.TrimSpace(newOwner) == "" {
			return fmt.Errorf("%w: new owner is required", ErrRejected)
		}
		asset.Owner = newOwner
		return nil
	})
}

// UpdateStatus sets a new asset status.
func (m *Memory) UpdateStatus(ctx context.Context, assetID, status string) error {
	return m.mutate(ctx, OpUpdateStatus, assetID, func(asset *Asset) error {
		if strings.TrimSpace(status) == "" {
			return fmt.Errorf("%w: status is required", ErrRejected)
		}
		asset.Status = status
		return nil
	})
}

func (m *Memory) mutate(ctx context.Context, op Operation, assetID string, apply func(*Asset) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, string(op)+":"+assetID)
	if err := m.failures[failureKey{op: op, assetID: assetID}]; err != nil {
		return err
	}
	asset, ok := m.assets[assetID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAssetNotFound, assetID)
	}
	if err := apply(&asset); err != nil {
		return err
	}
	m.assets[assetID] = asset
	return nil
}

var _ Ledger = (*Memory)(nil)
