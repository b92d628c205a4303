package option

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/shopdesk/pkg/db/pagination"
	"gorm.io/gorm"
)

// QueryOption mutates a gorm statement before execution.
type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type queryOptionFunc func(db *gorm.DB) *gorm.DB

func (f queryOptionFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

// ApplyPagination applies keyset pagination over snowflake ids, newest first.
// One extra row is fetched so callers can tell whether another page exists.
func ApplyPagination(page pagination.Pagination) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		size := page.PageSize
		if size <= 0 {
			size = pagination.DefaultPageSize
		}
		if size > pagination.MaxPageSize {
			size = pagination.MaxPageSize
		}

		if token := strings.TrimSpace(page.PageToken); token != "" {
			cursor, err := pagination.DecodeCursor(token)
			if err != nil {
				_ = db.AddError(pagination.ErrInvalidPageToken)
				return db
			}
			id, err := snowflake.ParseString(cursor.ID)
			if err != nil {
				_ = db.AddError(pagination.ErrInvalidPageToken)
				return db
			}
			db = db.Where("id < ?", id)
		}
		return db.Order("id desc").Limit(size + 1)
	})
}
