package booking

import (
	"context"
	"fmt"
)

// RetryPolicy は不安定な外部呼び出しの再試行方針を表す値オブジェクト。
// 月カレンダー取得と開始時刻取得の両方の呼び出し箇所で共有される。
// トランスポート障害とレスポンスのパース失敗はいずれも再試行対象として扱い、
// 試行回数を使い切った場合は最後のエラーを呼び出し元へ返す。
// バックオフ遅延は設けない（正しさはリトライ回数のみに依存する）。
type RetryPolicy struct {
	// MaxAttempts は試行回数の合計（初回を含む）。1未満は1として扱う。
	MaxAttempts int
}

// DefaultRetryPolicy はデフォルトの再試行方針（合計2回試行）を返す。
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 2}
}

// attempts は正規化された試行回数を返す。
func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Do はopを最大MaxAttempts回実行し、最初に成功した時点で返る。
// コンテキストのキャンセルは即座に中断として扱う。
func (p RetryPolicy) Do(ctx context.Context, op func() error) error {
	max := p.attempts()
	var last error
	for attempt := 1; attempt <= max; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if last = op(); last == nil {
			return nil
		}
	}
	return fmt.Errorf("%d回の試行がすべて失敗しました: %w", max, last)
}
