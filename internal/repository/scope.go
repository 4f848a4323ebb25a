package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/bulkmat/order-api/internal/auth"
	"github.com/bulkmat/order-api/internal/domain"
)

// MaxPageSize is the maximum allowed page size for paginated queries
const MaxPageSize = 200

// SortOrder represents the sort direction
type SortOrder string

const (
	SortOrderAsc  SortOrder = "asc"
	SortOrderDesc SortOrder = "desc"
)

// SortConfig holds sorting configuration for list queries
type SortConfig struct {
	Field string    // The field to sort by (API field name)
	Order SortOrder // asc or desc
}

// DefaultSortConfig returns a default sort configuration (created_at DESC)
func DefaultSortConfig() SortConfig {
	return SortConfig{Field: "created_at", Order: SortOrderDesc}
}

// ParseSortOrder parses a string into SortOrder, defaulting to desc
func ParseSortOrder(s string) SortOrder {
	if strings.ToLower(s) == "asc" {
		return SortOrderAsc
	}
	return SortOrderDesc
}

// BuildOrderClause builds the SQL ORDER BY clause from a whitelist of API
// field names to columns, falling back to defaultColumn
func BuildOrderClause(config SortConfig, fieldMap map[string]string, defaultColumn string) string {
	column, ok := fieldMap[config.Field]
	if !ok {
		column = defaultColumn
	}
	order := "DESC"
	if config.Order == SortOrderAsc {
		order = "ASC"
	}
	return column + " " + order
}

// normalizePage clamps page and page size to sane bounds
func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

// ApplyActorScope restricts an orders query to what the caller may see.
// Clients see their own orders, suppliers see orders with at least one item
// assigned to them and admins see everything. Without a user in the context
// (background jobs) the query is returned unchanged.
func ApplyActorScope(ctx context.Context, query *gorm.DB) *gorm.DB {
	user, ok := auth.FromContext(ctx)
	if !ok {
		return query
	}
	switch user.Role {
	case domain.RoleAdmin:
		return query
	case domain.RoleClient:
		return query.Where("orders.client_id = ?", user.UserID)
	case domain.RoleSupplier:
		if user.SupplierID == nil {
			return query.Where("1 = 0")
		}
		return query.Where("orders.id IN (SELECT order_id FROM order_items WHERE supplier_id = ?)", *user.SupplierID)
	default:
		return query.Where("1 = 0")
	}
}

// ApplyProjectScope restricts a projects query to the calling client.
// Suppliers never list projects.
func ApplyProjectScope(ctx context.Context, query *gorm.DB) *gorm.DB {
	user, ok := auth.FromContext(ctx)
	if !ok {
		return query
	}
	switch user.Role {
	case domain.RoleAdmin:
		return query
	case domain.RoleClient:
		return query.Where("projects.client_id = ?", user.UserID)
	default:
		return query.Where("1 = 0")
	}
}
