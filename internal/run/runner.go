// Package run は1回分の実行パイプラインを提供する。
// イベント一覧の取得 → 無料イベントの空きスロット取得 → 履歴との突き合わせ →
// 新着Slotの通知配信、を直列に実行する。
// フェッチと履歴更新の失敗は実行全体を中断させ、その実行では一切配信しない
// （不完全な差分から部分的な通知を送ることはない）。
// 配信の失敗は受信者単位で隔離され、実行を中断させない。
package run

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/slotwatch/internal/model"
)

// EventLister は予約サイトからイベント一覧を取得するインターフェース。
type EventLister interface {
	ListEvents(ctx context.Context) ([]model.Event, error)
}

// SlotFetcher は複数イベントの空きスロットを取得するインターフェース。
type SlotFetcher interface {
	SlotsForEvents(ctx context.Context, eventIDs []int64, monthsLookahead int) ([]model.Slot, error)
}

// Reconciler は候補Slotを履歴と突き合わせるインターフェース。
type Reconciler interface {
	Reconcile(ctx context.Context, candidates []model.Slot) ([]model.Slot, error)
}

// Dispatcher は新着Slotを受信者へ配信するインターフェース。
type Dispatcher interface {
	Dispatch(ctx context.Context, events []model.Event, newSlots []model.Slot, recipients []model.Recipient) ([]string, error)
}

// Report は1回の実行の結果サマリ。
type Report struct {
	FreeEvents int
	Candidates int
	NewSlots   int
	// Delivered は配信に成功したアドレスの一覧。
	Delivered []string
	// DeliveryErr は受信者単位の配信失敗の集約。実行自体は成功扱い。
	DeliveryErr error
}

// Runner は1回分の実行を統括する。
type Runner struct {
	events          EventLister
	fetcher         SlotFetcher
	history         Reconciler
	dispatcher      Dispatcher
	recipients      []model.Recipient
	monthsLookahead int
	logger          *slog.Logger
}

// NewRunner はRunnerの新しいインスタンスを生成する。
func NewRunner(
	events EventLister,
	fetcher SlotFetcher,
	history Reconciler,
	dispatcher Dispatcher,
	recipients []model.Recipient,
	monthsLookahead int,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		events:          events,
		fetcher:         fetcher,
		history:         history,
		dispatcher:      dispatcher,
		recipients:      recipients,
		monthsLookahead: monthsLookahead,
		logger:          logger,
	}
}

// Run は1回分のパイプラインを実行する。
// 通知対象は「この実行でフェッチされ、突き合わせ時点で履歴になかったSlot」に
// 固定され、配信結果が差分へ影響することはない。
// いずれかのイベントのスロット取得が失敗した場合は実行全体を失敗として返す
// （部分的な成功で続行はしない）。
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	start := time.Now()

	events, err := r.events.ListEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("イベント一覧の取得に失敗しました: %w", err)
	}

	freeEvents := model.FilterFreeEvents(events)
	if len(freeEvents) == 0 {
		r.logger.Info("無料イベントが存在しないため実行を終了します")
		return &Report{}, nil
	}

	eventIDs := make([]int64, 0, len(freeEvents))
	for _, e := range freeEvents {
		eventIDs = append(eventIDs, e.ID)
	}

	candidates, err := r.fetcher.SlotsForEvents(ctx, eventIDs, r.monthsLookahead)
	if err != nil {
		return nil, fmt.Errorf("空きスロットの取得に失敗しました: %w", err)
	}

	newSlots, err := r.history.Reconcile(ctx, candidates)
	if err != nil {
		return nil, fmt.Errorf("履歴との突き合わせに失敗しました: %w", err)
	}

	report := &Report{
		FreeEvents: len(freeEvents),
		Candidates: len(candidates),
		NewSlots:   len(newSlots),
	}

	if len(newSlots) == 0 {
		r.logger.Info("新着Slotがないため配信をスキップします",
			slog.Int("candidates", len(candidates)),
		)
		return report, nil
	}

	delivered, deliveryErr := r.dispatcher.Dispatch(ctx, freeEvents, newSlots, r.recipients)
	report.Delivered = delivered
	report.DeliveryErr = deliveryErr

	if deliveryErr != nil {
		r.logger.Error("一部の受信者への配信に失敗しました",
			slog.String("error", deliveryErr.Error()),
			slog.Int("delivered", len(delivered)),
		)
	}

	r.logger.Info("実行サイクルが完了しました",
		slog.Int("free_events", report.FreeEvents),
		slog.Int("candidates", report.Candidates),
		slog.Int("new_slots", report.NewSlots),
		slog.Int("delivered", len(report.Delivered)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return report, nil
}
