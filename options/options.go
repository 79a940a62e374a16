// Package options persists host level settings that outlive any cache entry:
// the account quota snapshot and the network type lookup tables.
package options

import (
	"context"
	"fmt"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/vmihailenco/msgpack/v5"
)

// Option names written by this module.
const (
	AccountOption         = "dfrapi_account"
	ProductNetworksOption = "dfrapi_product_networks"
	CouponNetworksOption  = "dfrapi_coupon_networks"
)

// Store reads and writes named options. Load reports false when the option
// has never been written.
type Store interface {
	Load(ctx context.Context, name string, dest any) (bool, error)
	Save(ctx context.Context, name string, value any) error
}

// Memory keeps options in process.
type Memory struct {
	values *xsync.MapOf[string, []byte]
}

// NewMemory creates an empty in-process option store.
func NewMemory() *Memory {
	return &Memory{values: xsync.NewMapOf[string, []byte]()}
}

func (m *Memory) Load(ctx context.Context, name string, dest any) (bool, error) {
	data, ok := m.values.Load(name)
	if !ok {
		return false, nil
	}
	if err := msgpack.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("decoding option %s: %w", name, err)
	}
	return true, nil
}

func (m *Memory) Save(ctx context.Context, name string, value any) error {
	data, err := msgpack.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding option %s: %w", name, err)
	}
	m.values.Store(name, data)
	return nil
}
