package availability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/slotwatch/internal/booking"
	"github.com/hitoshi/slotwatch/internal/calendar"
)

// fakeSource はテスト用のSource実装。
type fakeSource struct {
	mu        sync.Mutex
	workDays  map[string]map[string]booking.WorkDay // "yyyy-mm" → 日別稼働マップ
	dayTimes  map[string][]string                   // "yyyy-mm-dd" → 開始時刻一覧
	monthErr  error
	dayErr    map[string]error
	dayCalls  []string
	monthKeys []string
	monthCall int
}

func (s *fakeSource) MonthWorkDays(ctx context.Context, eventID int64, year, month int) (map[string]booking.WorkDay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.monthCall++
	key := fmt.Sprintf("%04d-%02d", year, month)
	s.monthKeys = append(s.monthKeys, key)
	if s.monthErr != nil {
		return nil, s.monthErr
	}
	return s.workDays[key], nil
}

func (s *fakeSource) DayTimes(ctx context.Context, eventID int64, date string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dayCalls = append(s.dayCalls, date)
	if err, ok := s.dayErr[date]; ok {
		return nil, err
	}
	return s.dayTimes[date], nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// 固定現在時刻: 2026-07-05 12:00 ロンドン時間（BST）
func testCalendar(t *testing.T) *calendar.Calendar {
	t.Helper()
	cal, err := calendar.NewWithNow("Europe/London", func() time.Time {
		return time.Date(2026, 7, 5, 11, 0, 0, 0, time.UTC)
	})
	if err != nil {
		t.Fatalf("Calendarの生成に失敗: %v", err)
	}
	return cal
}

func TestSlotsForEvent_BuildsSlots(t *testing.T) {
	source := &fakeSource{
		workDays: map[string]map[string]booking.WorkDay{
			"2026-07": {
				"2026-07-10": {IsDayOff: 0},
				"2026-07-11": {IsDayOff: 1}, // 休業日
			},
		},
		dayTimes: map[string][]string{
			"2026-07-10": {"09:00:00", "18:30:00"},
		},
	}

	f := NewFetcher(source, testCalendar(t), testLogger(), 2, nil)

	slots, err := f.SlotsForEvent(context.Background(), 3, 1)
	if err != nil {
		t.Fatalf("SlotsForEventに失敗: %v", err)
	}

	if len(slots) != 2 {
		t.Fatalf("Slot数 = %d, want 2", len(slots))
	}

	want, _ := testCalendar(t).ParseDateTime("2026-07-10 18:30:00")
	if !slots[1].Time.Equal(want) {
		t.Errorf("Slot時刻 = %v, want %v", slots[1].Time, want)
	}
	if slots[0].EventID != 3 {
		t.Errorf("EventID = %d, want 3", slots[0].EventID)
	}
}

func TestSlotsForEvent_SkipsDayOff(t *testing.T) {
	source := &fakeSource{
		workDays: map[string]map[string]booking.WorkDay{
			"2026-07": {"2026-07-11": {IsDayOff: 1}},
		},
	}

	f := NewFetcher(source, testCalendar(t), testLogger(), 2, nil)

	slots, err := f.SlotsForEvent(context.Background(), 3, 1)
	if err != nil {
		t.Fatalf("SlotsForEventに失敗: %v", err)
	}
	if len(slots) != 0 {
		t.Errorf("休業日のみの月ではSlotなしのはず: got %d", len(slots))
	}
	if len(source.dayCalls) != 0 {
		t.Errorf("休業日の開始時刻は取得しないべき: %v", source.dayCalls)
	}
}

func TestSlotsForEvent_FiltersPastDates(t *testing.T) {
	// 現在は2026-07-05。それより前の日付は月カレンダーに含まれていても除外する。
	source := &fakeSource{
		workDays: map[string]map[string]booking.WorkDay{
			"2026-07": {
				"2026-07-01": {IsDayOff: 0}, // 過去
				"2026-07-04": {IsDayOff: 0}, // 過去
				"2026-07-10": {IsDayOff: 0},
			},
		},
		dayTimes: map[string][]string{
			"2026-07-10": {"10:00:00"},
		},
	}

	f := NewFetcher(source, testCalendar(t), testLogger(), 2, nil)

	slots, err := f.SlotsForEvent(context.Background(), 3, 1)
	if err != nil {
		t.Fatalf("SlotsForEventに失敗: %v", err)
	}

	if len(slots) != 1 {
		t.Fatalf("過去日付は除外されるべき: got %d slots", len(slots))
	}
	for _, date := range source.dayCalls {
		if date < "2026-07-05" {
			t.Errorf("過去日付の開始時刻を取得している: %s", date)
		}
	}
}

func TestSlotsForEvent_MultipleMonths(t *testing.T) {
	source := &fakeSource{
		workDays: map[string]map[string]booking.WorkDay{
			"2026-07": {"2026-07-20": {IsDayOff: 0}},
			"2026-08": {"2026-08-03": {IsDayOff: 0}},
		},
		dayTimes: map[string][]string{
			"2026-07-20": {"10:00:00"},
			"2026-08-03": {"11:00:00"},
		},
	}

	f := NewFetcher(source, testCalendar(t), testLogger(), 2, nil)

	slots, err := f.SlotsForEvent(context.Background(), 3, 2)
	if err != nil {
		t.Fatalf("SlotsForEventに失敗: %v", err)
	}

	if source.monthCall != 2 {
		t.Errorf("2ヶ月分の月カレンダーを取得すべき: got %d", source.monthCall)
	}
	if len(slots) != 2 {
		t.Fatalf("Slot数 = %d, want 2", len(slots))
	}
	// 結果は月オフセット順（7月→8月）
	if !slots[0].Time.Before(slots[1].Time) {
		t.Errorf("結果は時系列順であるべき: %v, %v", slots[0].Time, slots[1].Time)
	}
}

func TestSlotsForEvent_MonthEndLookahead(t *testing.T) {
	// 月末日（1月31日）起点でも2月が飛ばされず連続した月を取得する
	cal, err := calendar.NewWithNow("Europe/London", func() time.Time {
		return time.Date(2026, 1, 31, 12, 0, 0, 0, time.UTC)
	})
	if err != nil {
		t.Fatalf("Calendarの生成に失敗: %v", err)
	}

	source := &fakeSource{
		workDays: map[string]map[string]booking.WorkDay{
			"2026-01": {"2026-01-31": {IsDayOff: 0}}, // 当日は過去日付として除外される
			"2026-02": {"2026-02-14": {IsDayOff: 0}},
		},
		dayTimes: map[string][]string{
			"2026-02-14": {"10:00:00"},
		},
	}

	f := NewFetcher(source, cal, testLogger(), 2, nil)

	slots, err := f.SlotsForEvent(context.Background(), 3, 2)
	if err != nil {
		t.Fatalf("SlotsForEventに失敗: %v", err)
	}

	got := append([]string(nil), source.monthKeys...)
	sort.Strings(got)
	if len(got) != 2 || got[0] != "2026-01" || got[1] != "2026-02" {
		t.Errorf("取得対象の月 = %v, want [2026-01 2026-02]", got)
	}
	if len(slots) != 1 || slots[0].Time.Month() != time.February {
		t.Errorf("2月のSlotが取得されるべき: got %v", slots)
	}
}

func TestSlotsForEvent_MonthFetchFailure(t *testing.T) {
	source := &fakeSource{monthErr: errors.New("boom")}

	f := NewFetcher(source, testCalendar(t), testLogger(), 2, nil)

	if _, err := f.SlotsForEvent(context.Background(), 3, 2); err == nil {
		t.Error("月カレンダー取得失敗時はエラーを返すべき")
	}
}

func TestSlotsForEvent_DayFetchFailure(t *testing.T) {
	source := &fakeSource{
		workDays: map[string]map[string]booking.WorkDay{
			"2026-07": {
				"2026-07-10": {IsDayOff: 0},
				"2026-07-12": {IsDayOff: 0},
			},
		},
		dayTimes: map[string][]string{
			"2026-07-10": {"10:00:00"},
		},
		dayErr: map[string]error{
			"2026-07-12": errors.New("boom"),
		},
	}

	f := NewFetcher(source, testCalendar(t), testLogger(), 2, nil)

	if _, err := f.SlotsForEvent(context.Background(), 3, 1); err == nil {
		t.Error("いずれかの日の取得失敗はイベント全体の失敗のはず")
	}
}

func TestSlotsForEvents_ConcatenatesInOrder(t *testing.T) {
	source := &fakeSource{
		workDays: map[string]map[string]booking.WorkDay{
			"2026-07": {"2026-07-10": {IsDayOff: 0}},
		},
		dayTimes: map[string][]string{
			"2026-07-10": {"10:00:00"},
		},
	}

	f := NewFetcher(source, testCalendar(t), testLogger(), 2, nil)

	slots, err := f.SlotsForEvents(context.Background(), []int64{5, 9}, 1)
	if err != nil {
		t.Fatalf("SlotsForEventsに失敗: %v", err)
	}

	if len(slots) != 2 {
		t.Fatalf("Slot数 = %d, want 2", len(slots))
	}
	if slots[0].EventID != 5 || slots[1].EventID != 9 {
		t.Errorf("結果はイベントID引数の順に連結されるべき: %d, %d", slots[0].EventID, slots[1].EventID)
	}
}

func TestSlotsForEvents_FailFast(t *testing.T) {
	source := &fakeSource{monthErr: errors.New("boom")}

	f := NewFetcher(source, testCalendar(t), testLogger(), 2, nil)

	if _, err := f.SlotsForEvents(context.Background(), []int64{1, 2, 3}, 1); err == nil {
		t.Error("最初のイベントの失敗で全体を中断すべき")
	}
}

// countingRecorder はテスト用のFetchRecorder。
type countingRecorder struct {
	mu         sync.Mutex
	success    int
	failure    int
	discovered int
}

func (r *countingRecorder) RecordFetchSuccess() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.success++
}

func (r *countingRecorder) RecordFetchFailure() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failure++
}

func (r *countingRecorder) RecordSlotsDiscovered(count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.discovered += count
}

func TestSlotsForEvent_RecordsMetrics(t *testing.T) {
	source := &fakeSource{
		workDays: map[string]map[string]booking.WorkDay{
			"2026-07": {"2026-07-10": {IsDayOff: 0}},
		},
		dayTimes: map[string][]string{
			"2026-07-10": {"10:00:00", "11:00:00"},
		},
	}

	rec := &countingRecorder{}
	f := NewFetcher(source, testCalendar(t), testLogger(), 2, rec)

	if _, err := f.SlotsForEvent(context.Background(), 3, 1); err != nil {
		t.Fatalf("SlotsForEventに失敗: %v", err)
	}

	if rec.success != 1 {
		t.Errorf("成功カウント = %d, want 1", rec.success)
	}
	if rec.discovered != 2 {
		t.Errorf("発見Slotカウント = %d, want 2", rec.discovered)
	}
}
