// Package booking は予約サイト（SimplyBook系スケジューラ）へのアクセスを提供する。
// イベント一覧ページの取得と、月カレンダー・開始時刻マトリクスのJSON APIの
// 呼び出し、およびそれらで共有する再試行方針を含む。
package booking

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/slotwatch/internal/model"
)

const (
	// eventsPagePath はイベント定義が埋め込まれた予約管理ページのパス。
	eventsPagePath = "/sheduler/manage"
	// monthlyCalendarPathFmt は月カレンダーAPIのパス（year, month, event_id）。
	monthlyCalendarPathFmt = "/sheduler/load-monthly-calendar/year/%d/month/%d/event_id/%d"
	// startTimeMatrixPathFmt は開始時刻マトリクスAPIのパス（date, event_id）。
	startTimeMatrixPathFmt = "/sheduler/get-starttime-matrix/?date=%s&event_id=%d"

	// maxResponseSize はレスポンスボディの読み取り上限（1MB）。
	maxResponseSize = 1 << 20

	userAgent = "slotwatch/1.0"
)

// eventsPattern はページ内スクリプトに埋め込まれたイベント配列を抽出する。
var eventsPattern = regexp.MustCompile(`(?s)var\s+events\s*=\s*(\[.*?\])\s*;`)

// WorkDay は月カレンダー上の1日分の稼働情報。
// is_day_offが0の日だけが予約候補日となる。
type WorkDay struct {
	IsDayOff int `json:"is_day_off"`
}

// IsOpen は予約受付がある日（休業日でない日）かどうかを返す。
func (w WorkDay) IsOpen() bool {
	return w.IsDayOff == 0
}

// monthlyCalendarResponse は月カレンダーAPIのレスポンス。
// work_daysは "yyyy-mm-dd" → WorkDay のマッピング。
type monthlyCalendarResponse struct {
	WorkDays map[string]WorkDay `json:"work_days"`
}

// RequestRecorder は外部リクエストのメトリクス記録の最小インターフェース。
// metrics.Collectorが実装する。nilの場合は記録しない。
type RequestRecorder interface {
	RecordHTTPStatus(statusCode int)
	RecordFetchLatency(duration time.Duration)
}

// Client は予約サイトのHTTPクライアント。
// すべてのリクエストは共有のレートリミッタを通るため、外部ソースへの
// 同時フェッチ数に関わらず秒間リクエスト数が上限を超えることはない。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	limiter    *rate.Limiter
	retry      RetryPolicy
	metrics    RequestRecorder
}

// NewClient はClientの新しいインスタンスを生成する。
// ratePerSecは外部ソースへの秒間リクエスト数の上限。0以下の場合は制限しない。
// metricsはnil可。
func NewClient(
	httpClient *http.Client,
	logger *slog.Logger,
	baseURL string,
	retry RetryPolicy,
	ratePerSec float64,
	metrics RequestRecorder,
) *Client {
	limit := rate.Inf
	if ratePerSec > 0 {
		limit = rate.Limit(ratePerSec)
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    baseURL,
		limiter:    rate.NewLimiter(limit, 1),
		retry:      retry,
		metrics:    metrics,
	}
}

// ListEvents は予約管理ページからイベント一覧を取得する。
// イベントはページ内スクリプトのJSON配列として埋め込まれている。
func (c *Client) ListEvents(ctx context.Context) ([]model.Event, error) {
	var events []model.Event

	err := c.retry.Do(ctx, func() error {
		body, err := c.get(ctx, c.baseURL+eventsPagePath)
		if err != nil {
			return err
		}

		m := eventsPattern.FindSubmatch(body)
		if m == nil {
			return fmt.Errorf("ページ内にイベント定義が見つかりません")
		}

		var parsed []model.Event
		if err := json.Unmarshal(m[1], &parsed); err != nil {
			return fmt.Errorf("イベント定義のパースに失敗しました: %w", err)
		}

		events = parsed
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("イベント一覧の取得に失敗しました: %w", err)
	}

	return events, nil
}

// MonthWorkDays は指定イベント・年月の日別稼働マップを取得する。
// キーは "yyyy-mm-dd" 形式の日付テキスト。monthは1-12。
func (c *Client) MonthWorkDays(ctx context.Context, eventID int64, year, month int) (map[string]WorkDay, error) {
	url := c.baseURL + fmt.Sprintf(monthlyCalendarPathFmt, year, month, eventID)

	var resp monthlyCalendarResponse
	err := c.retry.Do(ctx, func() error {
		return c.getJSON(ctx, url, &resp)
	})
	if err != nil {
		return nil, fmt.Errorf("月カレンダーの取得に失敗しました (event=%d %04d-%02d): %w", eventID, year, month, err)
	}

	return resp.WorkDays, nil
}

// DayTimes は指定イベント・日付の予約可能な開始時刻一覧を取得する。
// 戻り値は "hh:mm:ss" 形式のテキストの一覧。
func (c *Client) DayTimes(ctx context.Context, eventID int64, date string) ([]string, error) {
	url := c.baseURL + fmt.Sprintf(startTimeMatrixPathFmt, date, eventID)

	var times []string
	err := c.retry.Do(ctx, func() error {
		return c.getJSON(ctx, url, &times)
	})
	if err != nil {
		return nil, fmt.Errorf("開始時刻一覧の取得に失敗しました (event=%d date=%s): %w", eventID, date, err)
	}

	return times, nil
}

// getJSON はGETリクエストを1回実行し、レスポンスをJSONとしてデコードする。
// パース失敗もトランスポート障害と同様に呼び出し元（RetryPolicy）で再試行される。
func (c *Client) getJSON(ctx context.Context, url string, target interface{}) error {
	body, err := c.get(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	return nil
}

// get はレートリミッタを通した上でGETリクエストを1回実行する。
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json, text/html, */*")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("予約サイトへのリクエストに失敗しました",
			slog.String("url", url),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("HTTPリクエストに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if c.metrics != nil {
		c.metrics.RecordHTTPStatus(resp.StatusCode)
		c.metrics.RecordFetchLatency(time.Since(start))
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("予約サイトがエラーステータスを返しました",
			slog.String("url", url),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, fmt.Errorf("予約サイトがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	return body, nil
}
