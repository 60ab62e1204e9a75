package aggregates

import (
	"strings"

	"github.com/google/uuid"
	"github.com/yungbote/wayfarer-backend/internal/platform/dbctx"
	"gorm.io/gorm"
)

// CASGuard performs conditional writes whose WHERE clause carries the
// expected current state; zero affected rows means someone else moved first.
type CASGuard struct {
	db *gorm.DB
}

func NewCASGuard(db *gorm.DB) CASGuard {
	return CASGuard{db: db}
}

func (g CASGuard) baseDB(dbc dbctx.Context) (*gorm.DB, error) {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx), nil
	}
	if g.db != nil {
		return g.db.WithContext(dbc.Ctx), nil
	}
	return nil, ValidationError("missing db transaction context")
}

// UpdateByStatus updates a row only while its status is one of allowedStatuses.
func (g CASGuard) UpdateByStatus(dbc dbctx.Context, table string, id uuid.UUID, allowedStatuses []string, updates map[string]any) (bool, error) {
	table = strings.TrimSpace(table)
	if table == "" || id == uuid.Nil {
		return false, ValidationError("table and id are required for UpdateByStatus")
	}
	if len(allowedStatuses) == 0 {
		return false, ValidationError("allowedStatuses must not be empty")
	}
	return g.UpdateWhere(dbc, table, updates, "id = ? AND status IN ?", id, allowedStatuses)
}

// UpdateWhere applies updates to the rows of table matching where. It reports
// whether any row matched.
func (g CASGuard) UpdateWhere(dbc dbctx.Context, table string, updates map[string]any, where string, args ...any) (bool, error) {
	db, err := g.baseDB(dbc)
	if err != nil {
		return false, err
	}
	table = strings.TrimSpace(table)
	where = strings.TrimSpace(where)
	if table == "" || where == "" {
		return false, ValidationError("table and condition are required for UpdateWhere")
	}
	res := db.Table(table).Where(where, args...).Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func RequireCASSuccess(ok bool, message string) error {
	if ok {
		return nil
	}
	return ConflictError(strings.TrimSpace(message))
}
