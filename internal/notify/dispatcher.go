package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hitoshi/slotwatch/internal/model"
)

// mailSubject は通知メールの件名。
const mailSubject = "新着予約枠のお知らせ"

// MailRecorder はメール配信結果のメトリクス記録の最小インターフェース。
type MailRecorder interface {
	RecordMailSent()
	RecordMailFailed()
}

// Dispatcher は新着Slotの受信者への通知配信を行う。
// 受信者ごとの処理は独立しており、1受信者の配信失敗が他の受信者の
// 配信を妨げることはない。
type Dispatcher struct {
	renderer  Renderer
	deliverer Deliverer
	logger    *slog.Logger
	metrics   MailRecorder
}

// NewDispatcher はDispatcherの新しいインスタンスを生成する。metricsはnil可。
func NewDispatcher(renderer Renderer, deliverer Deliverer, logger *slog.Logger, metrics MailRecorder) *Dispatcher {
	return &Dispatcher{
		renderer:  renderer,
		deliverer: deliverer,
		logger:    logger,
		metrics:   metrics,
	}
}

// Dispatch は新着Slotを受信者ごとの関心条件で絞り込み、1件以上該当する
// 受信者へそれぞれ1通のメッセージを描画・配信する。
// 該当Slotのない受信者は配信せずスキップする（エラーではない）。
// 戻り値は配信に成功したアドレスの一覧と、失敗した受信者のエラーを
// errors.Joinで集約したもの。配信順・戻り値の順序に意味はない。
func (d *Dispatcher) Dispatch(
	ctx context.Context,
	events []model.Event,
	newSlots []model.Slot,
	recipients []model.Recipient,
) ([]string, error) {
	addresses := make([]string, len(recipients))
	failures := make([]error, len(recipients))

	var wg sync.WaitGroup
	for i, recipient := range recipients {
		wg.Add(1)

		go func(idx int, r model.Recipient) {
			defer wg.Done()

			relevant := r.InterestedSlots(newSlots)
			if len(relevant) == 0 {
				d.logger.Info("関心条件に該当するSlotがないため配信をスキップします",
					slog.String("recipient", r.Name),
				)
				return
			}

			body, err := d.renderer.Render(r.Name, events, relevant)
			if err != nil {
				failures[idx] = fmt.Errorf("受信者 %s への本文描画に失敗しました: %w", r.Email, err)
				return
			}

			msg := Message{To: r.Email, Subject: mailSubject, Body: body}
			if err := d.deliverer.Deliver(ctx, msg); err != nil {
				if d.metrics != nil {
					d.metrics.RecordMailFailed()
				}
				d.logger.Error("メッセージの配信に失敗しました",
					slog.String("recipient", r.Name),
					slog.String("address", r.Email),
					slog.String("error", err.Error()),
				)
				failures[idx] = fmt.Errorf("受信者 %s への配信に失敗しました: %w", r.Email, err)
				return
			}

			if d.metrics != nil {
				d.metrics.RecordMailSent()
			}
			d.logger.Info("メッセージを配信しました",
				slog.String("recipient", r.Name),
				slog.String("address", r.Email),
				slog.Int("slots", len(relevant)),
			)
			addresses[idx] = r.Email
		}(i, recipient)
	}

	wg.Wait()

	var delivered []string
	for _, addr := range addresses {
		if addr != "" {
			delivered = append(delivered, addr)
		}
	}

	return delivered, errors.Join(failures...)
}
