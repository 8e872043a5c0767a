// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/slotwatch/internal/model"
)

// SlotRepository は観測済みSlotの永続化インターフェース。
// レコードは (event_id, slot_time) で一意であり、追記のみで削除されない。
type SlotRepository interface {
	// Upsert はSlotを冪等に挿入する。
	// 新しいレコードが作成された場合はtrue、既に存在していた場合はfalseを返す。
	// 既存レコードに対する上書きは行わない（no-op）。
	// 並行する実行が同じSlotをupsertしても一意制約により重複は発生しない。
	Upsert(ctx context.Context, slot model.Slot) (created bool, err error)

	// Count は記録済みSlotの総数を返す。
	Count(ctx context.Context) (int64, error)
}
