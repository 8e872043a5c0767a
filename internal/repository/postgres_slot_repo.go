package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/hitoshi/slotwatch/internal/model"
)

// PostgresSlotRepo はPostgreSQLを使用した観測済みSlotリポジトリ。
type PostgresSlotRepo struct {
	db *sql.DB
}

// NewPostgresSlotRepo はPostgresSlotRepoを生成する。
func NewPostgresSlotRepo(db *sql.DB) *PostgresSlotRepo {
	return &PostgresSlotRepo{db: db}
}

// Upsert はSlotを冪等に挿入する。
// (event_id, slot_time) の一意制約に衝突した場合はON CONFLICT DO NOTHINGで
// 既存レコードを変更せず、影響行数0として返る。影響行数1 = 新規作成。
func (r *PostgresSlotRepo) Upsert(ctx context.Context, slot model.Slot) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO historic_slots (id, event_id, slot_time)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (event_id, slot_time) DO NOTHING`,
		uuid.New().String(), slot.EventID, slot.Time,
	)
	if err != nil {
		return false, fmt.Errorf("Slotのupsertに失敗しました (%s): %w", slot, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("upsert結果の取得に失敗しました: %w", err)
	}

	return affected == 1, nil
}

// Count は記録済みSlotの総数を返す。
func (r *PostgresSlotRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM historic_slots`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("Slot総数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// compile-time interface check
var _ SlotRepository = (*PostgresSlotRepo)(nil)
