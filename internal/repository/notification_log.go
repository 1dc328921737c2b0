package repository

import (
	"context"
	"fmt"

	trmsqlx "github.com/avito-tech/go-transaction-manager/drivers/sqlx/v2"
	"github.com/jmoiron/sqlx"
)

// NotificationLogRepo records reminder reference keys. The unique key is what
// makes threshold reminders at-most-once across overlapping sweep runs and
// multiple process instances.
type NotificationLogRepo struct {
	db     *sqlx.DB
	getter *trmsqlx.CtxGetter
}

func NewNotificationLogRepo(db *sqlx.DB, getter *trmsqlx.CtxGetter) *NotificationLogRepo {
	return &NotificationLogRepo{db: db, getter: getter}
}

// TryClaim inserts the reference key and reports whether this caller won the
// claim. A false result means another run already sent the reminder.
func (r *NotificationLogRepo) TryClaim(ctx context.Context, referenceKey string) (bool, error) {
	res, err := r.getter.DefaultTrOrDB(ctx, r.db).ExecContext(ctx, `
		INSERT INTO notification_log (reference_key)
		VALUES ($1)
		ON CONFLICT (reference_key) DO NOTHING`, referenceKey)
	if err != nil {
		return false, fmt.Errorf("failed to claim notification key: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read notification claim result: %w", err)
	}
	return affected > 0, nil
}

// Release frees a claimed key so the next sweep cycle can retry after a failed
// send attempt.
func (r *NotificationLogRepo) Release(ctx context.Context, referenceKey string) error {
	_, err := r.getter.DefaultTrOrDB(ctx, r.db).ExecContext(ctx, `
		DELETE FROM notification_log
		WHERE reference_key = $1`, referenceKey)
	if err != nil {
		return fmt.Errorf("failed to release notification key: %w", err)
	}
	return nil
}
