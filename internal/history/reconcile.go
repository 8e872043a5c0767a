// Package history は観測済みSlotの履歴管理と新着判定を提供する。
package history

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/slotwatch/internal/model"
	"github.com/hitoshi/slotwatch/internal/repository"
)

// NewSlotRecorder は新着Slot数のメトリクス記録の最小インターフェース。
type NewSlotRecorder interface {
	RecordSlotsNew(count int)
}

// Service は候補Slotと履歴レコードの突き合わせを行う。
// 履歴は単調増加の集合であり、一度記録されたSlotは以降の実行で
// 新着として報告されることはない（ソースから一時的に消えて再出現しても同様）。
type Service struct {
	repo    repository.SlotRepository
	logger  *slog.Logger
	metrics NewSlotRecorder
}

// NewService はServiceの新しいインスタンスを生成する。metricsはnil可。
func NewService(repo repository.SlotRepository, logger *slog.Logger, metrics NewSlotRecorder) *Service {
	return &Service{repo: repo, logger: logger, metrics: metrics}
}

// Reconcile は候補Slotをすべて履歴へupsertし、新規に記録されたSlotのみを返す。
// upsertは冪等であり、同じ候補で2回呼んだ場合、2回目の戻り値は空になる。
// バッチ内に同一性（イベントと時刻）が重複する候補があっても、upsertと
// 戻り値への追加は1回だけ行われる。
// いずれかのSlotのupsertが失敗した場合はバッチ全体を失敗として扱い、
// エラーを返す（この実行での通知は行われない）。
func (s *Service) Reconcile(ctx context.Context, candidates []model.Slot) ([]model.Slot, error) {
	newSlots := make([]model.Slot, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))

	for _, slot := range candidates {
		if _, dup := seen[slot.Key()]; dup {
			continue
		}
		seen[slot.Key()] = struct{}{}

		created, err := s.repo.Upsert(ctx, slot)
		if err != nil {
			return nil, fmt.Errorf("履歴の更新に失敗しました: %w", err)
		}
		if created {
			newSlots = append(newSlots, slot)
		}
	}

	if s.metrics != nil {
		s.metrics.RecordSlotsNew(len(newSlots))
	}

	s.logger.Info("履歴との突き合わせが完了しました",
		slog.Int("candidates", len(candidates)),
		slog.Int("new_slots", len(newSlots)),
	)

	return newSlots, nil
}
