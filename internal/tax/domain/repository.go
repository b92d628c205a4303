package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Repository interface {
	FindByShopID(ctx context.Context, shopID snowflake.ID) (*TaxSettings, error)
	// CreateIfAbsent inserts settings unless the shop already has a row.
	// It reports whether this call created the row.
	CreateIfAbsent(ctx context.Context, settings *TaxSettings) (bool, error)
	Update(ctx context.Context, settings *TaxSettings) error
}
