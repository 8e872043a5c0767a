// Package watch は実行パイプラインの定期実行を提供する。
// 1回の実行は短命なバッチジョブであり、cron等の外部トリガーでの起動が基本だが、
// 監視モードではこのスケジューラがティッカーで同じパイプラインを繰り返す。
package watch

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/slotwatch/internal/run"
)

// Pipeline は1回分の実行インターフェース。run.Runnerが実装する。
type Pipeline interface {
	Run(ctx context.Context) (*run.Report, error)
}

// Scheduler は実行パイプラインを一定間隔で繰り返し実行する。
// 1サイクルの失敗は記録するだけで、次のサイクルは通常どおり実行する
// （サイクル間で部分的な再試行は行わない）。
type Scheduler struct {
	pipeline Pipeline
	logger   *slog.Logger
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
func NewScheduler(pipeline Pipeline, logger *slog.Logger) *Scheduler {
	return &Scheduler{pipeline: pipeline, logger: logger}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// 起動直後に1回実行し、以降はコンテキストがキャンセルされるまで繰り返す。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("監視スケジューラを開始しました",
		slog.Duration("interval", interval),
	)

	s.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("監視スケジューラを停止しました")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

// runOnce は1サイクルを実行し、失敗をログに記録する。
func (s *Scheduler) runOnce(ctx context.Context) {
	if _, err := s.pipeline.Run(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("実行サイクルに失敗しました",
			slog.String("error", err.Error()),
		)
	}
}
