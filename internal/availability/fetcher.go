// Package availability は予約サイトからの空きスロット取得を提供する。
// 月カレンダーの稼働日取得と日別の開始時刻取得を組み合わせ、
// 先読み期間内のすべての候補Slotを列挙する。
package availability

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/hitoshi/slotwatch/internal/booking"
	"github.com/hitoshi/slotwatch/internal/calendar"
	"github.com/hitoshi/slotwatch/internal/model"
)

// Source は予約サイトから稼働日と開始時刻を取得するインターフェース。
// booking.Clientが実装する。
type Source interface {
	// MonthWorkDays は指定イベント・年月の日別稼働マップを返す。
	MonthWorkDays(ctx context.Context, eventID int64, year, month int) (map[string]booking.WorkDay, error)
	// DayTimes は指定イベント・日付の予約可能な開始時刻一覧を返す。
	DayTimes(ctx context.Context, eventID int64, date string) ([]string, error)
}

// FetchRecorder はフェッチ結果のメトリクス記録の最小インターフェース。
type FetchRecorder interface {
	RecordFetchSuccess()
	RecordFetchFailure()
	RecordSlotsDiscovered(count int)
}

// Fetcher はイベントごとの空きスロット取得を行う。
// 月単位・日単位のサブフェッチは独立しているため、semaphoreパターンで
// 並列数を制御しながら並行実行し、結果は完了順に依存しない形で組み立てる。
type Fetcher struct {
	source         Source
	cal            *calendar.Calendar
	logger         *slog.Logger
	maxConcurrency int
	metrics        FetchRecorder
}

// NewFetcher はFetcherの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値4を使用する。metricsはnil可。
func NewFetcher(
	source Source,
	cal *calendar.Calendar,
	logger *slog.Logger,
	maxConcurrency int,
	metrics FetchRecorder,
) *Fetcher {
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	return &Fetcher{
		source:         source,
		cal:            cal,
		logger:         logger,
		maxConcurrency: maxConcurrency,
		metrics:        metrics,
	}
}

// SlotsForEvent は指定イベントの空きスロットを先読み期間分取得する。
// 現在の月からmonthsLookaheadヶ月分の稼働日を集め、過去の日付を除外した上で
// 日ごとの開始時刻と組み合わせてSlotを生成する。
// いずれかのサブフェッチが失敗した場合、このイベントの取得全体を失敗として返す。
func (f *Fetcher) SlotsForEvent(ctx context.Context, eventID int64, monthsLookahead int) ([]model.Slot, error) {
	if monthsLookahead < 1 {
		monthsLookahead = 1
	}

	start := time.Now()

	dates, err := f.openDates(ctx, eventID, monthsLookahead)
	if err != nil {
		if f.metrics != nil {
			f.metrics.RecordFetchFailure()
		}
		return nil, err
	}

	slots, err := f.slotsForDates(ctx, eventID, dates)
	if err != nil {
		if f.metrics != nil {
			f.metrics.RecordFetchFailure()
		}
		return nil, err
	}

	if f.metrics != nil {
		f.metrics.RecordFetchSuccess()
		f.metrics.RecordSlotsDiscovered(len(slots))
	}

	f.logger.Info("イベントの空きスロットを取得しました",
		slog.Int64("event_id", eventID),
		slog.Int("open_dates", len(dates)),
		slog.Int("slots", len(slots)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return slots, nil
}

// SlotsForEvents は複数イベントの空きスロットをまとめて取得する。
// 結果はイベントID引数の順に連結される。いずれかのイベントで取得が失敗した場合、
// 残りのイベントは処理せずエラーを返す（実行全体をフェイルファストで
// 中断するオーケストレーターの方針に合わせている）。
func (f *Fetcher) SlotsForEvents(ctx context.Context, eventIDs []int64, monthsLookahead int) ([]model.Slot, error) {
	var all []model.Slot
	for _, id := range eventIDs {
		slots, err := f.SlotsForEvent(ctx, id, monthsLookahead)
		if err != nil {
			return nil, err
		}
		all = append(all, slots...)
	}
	return all, nil
}

// openDates は先読み期間内の稼働日（"yyyy-mm-dd"）を収集する。
// 月ごとのサブフェッチは並行実行するが、結果は月オフセット順のスライスに
// 格納するため完了順に依存しない。月境界付近では過去の日付が混入するため、
// 現在時刻より厳密に前の日付は除外する。
func (f *Fetcher) openDates(ctx context.Context, eventID int64, monthsLookahead int) ([]string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	perMonth := make([][]string, monthsLookahead)
	errs := make([]error, monthsLookahead)

	sem := make(chan struct{}, f.maxConcurrency)
	var wg sync.WaitGroup

	for i := 0; i < monthsLookahead; i++ {
		wg.Add(1)
		sem <- struct{}{}

		go func(offset int) {
			defer wg.Done()
			defer func() { <-sem }()

			year, month := f.cal.YearMonthFromNow(offset)
			workDays, err := f.source.MonthWorkDays(ctx, eventID, year, month)
			if err != nil {
				errs[offset] = err
				cancel()
				return
			}

			var open []string
			for date, day := range workDays {
				if day.IsOpen() {
					open = append(open, date)
				}
			}
			sort.Strings(open)
			perMonth[offset] = open
		}(i)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("稼働日の取得に失敗しました (event=%d): %w", eventID, err)
		}
	}

	now := f.cal.Now()
	var dates []string
	for _, monthDates := range perMonth {
		for _, date := range monthDates {
			parsed, err := f.cal.ParseDate(date)
			if err != nil {
				return nil, fmt.Errorf("稼働日のパースに失敗しました (event=%d): %w", eventID, err)
			}
			if parsed.Before(now) {
				continue
			}
			dates = append(dates, date)
		}
	}

	return dates, nil
}

// slotsForDates は日付ごとの開始時刻を取得し、Slotへ組み立てる。
// 日ごとのサブフェッチも並行実行し、結果は日付順のスライスに格納する。
func (f *Fetcher) slotsForDates(ctx context.Context, eventID int64, dates []string) ([]model.Slot, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	perDate := make([][]model.Slot, len(dates))
	errs := make([]error, len(dates))

	sem := make(chan struct{}, f.maxConcurrency)
	var wg sync.WaitGroup

	for i, date := range dates {
		wg.Add(1)
		sem <- struct{}{}

		go func(idx int, date string) {
			defer wg.Done()
			defer func() { <-sem }()

			times, err := f.source.DayTimes(ctx, eventID, date)
			if err != nil {
				errs[idx] = err
				cancel()
				return
			}

			slots := make([]model.Slot, 0, len(times))
			for _, timeOfDay := range times {
				t, err := f.cal.ParseDateTime(date + " " + timeOfDay)
				if err != nil {
					errs[idx] = err
					cancel()
					return
				}
				slots = append(slots, model.NewSlot(eventID, t))
			}
			perDate[idx] = slots
		}(i, date)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("開始時刻の取得に失敗しました (event=%d): %w", eventID, err)
		}
	}

	var all []model.Slot
	for _, slots := range perDate {
		all = append(all, slots...)
	}

	return all, nil
}
