package notify

import (
	"testing"
	"time"

	"github.com/hitoshi/slotwatch/internal/calendar"
	"github.com/hitoshi/slotwatch/internal/config"
	"github.com/hitoshi/slotwatch/internal/model"
)

func londonCalendar(t *testing.T) *calendar.Calendar {
	t.Helper()
	cal, err := calendar.New("Europe/London")
	if err != nil {
		t.Fatalf("Calendarの生成に失敗: %v", err)
	}
	return cal
}

func slotOn(t *testing.T, cal *calendar.Calendar, eventID int64, datetime string) model.Slot {
	t.Helper()
	at, err := cal.ParseDateTime(datetime)
	if err != nil {
		t.Fatalf("日時のパースに失敗: %v", err)
	}
	return model.NewSlot(eventID, at)
}

func intPtr(v int) *int { return &v }

// 18時以降 または 土日、のOR条件
func eveningOrWeekend(t *testing.T, cal *calendar.Calendar) *TimeCriteria {
	t.Helper()
	return NewTimeCriteria(cal, intPtr(18), []int{0, 6})
}

func TestTimeCriteria_WeekdayEveningMatches(t *testing.T) {
	cal := londonCalendar(t)
	c := eveningOrWeekend(t, cal)

	// 2026-07-06 は月曜日
	if !c.Matches(slotOn(t, cal, 1, "2026-07-06 19:00:00")) {
		t.Error("月曜19時は「18時以降」にマッチすべき")
	}
}

func TestTimeCriteria_WeekdayMorningDoesNotMatch(t *testing.T) {
	cal := londonCalendar(t)
	c := eveningOrWeekend(t, cal)

	if c.Matches(slotOn(t, cal, 1, "2026-07-06 10:00:00")) {
		t.Error("月曜10時はどちらの条件にもマッチしないはず")
	}
}

func TestTimeCriteria_WeekendMorningMatches(t *testing.T) {
	cal := londonCalendar(t)
	c := eveningOrWeekend(t, cal)

	// 2026-07-11 は土曜日
	if !c.Matches(slotOn(t, cal, 1, "2026-07-11 10:00:00")) {
		t.Error("土曜10時は曜日条件にマッチすべき")
	}
	// 2026-07-12 は日曜日
	if !c.Matches(slotOn(t, cal, 1, "2026-07-12 09:00:00")) {
		t.Error("日曜9時は曜日条件にマッチすべき")
	}
}

func TestTimeCriteria_ExactBoundaryHour(t *testing.T) {
	cal := londonCalendar(t)
	c := eveningOrWeekend(t, cal)

	if !c.Matches(slotOn(t, cal, 1, "2026-07-06 18:00:00")) {
		t.Error("18:00ちょうどは「18時以降」にマッチすべき")
	}
	if c.Matches(slotOn(t, cal, 1, "2026-07-06 17:59:00")) {
		t.Error("17:59はマッチしないはず")
	}
}

func TestTimeCriteria_HourOnly(t *testing.T) {
	cal := londonCalendar(t)
	c := NewTimeCriteria(cal, intPtr(18), nil)

	if c.Matches(slotOn(t, cal, 1, "2026-07-11 10:00:00")) {
		t.Error("曜日条件なしでは土曜午前はマッチしないはず")
	}
	if !c.Matches(slotOn(t, cal, 1, "2026-07-11 18:30:00")) {
		t.Error("時刻条件のみでも18時以降はマッチすべき")
	}
}

func TestTimeCriteria_WeekdaysOnly(t *testing.T) {
	cal := londonCalendar(t)
	c := NewTimeCriteria(cal, nil, []int{6})

	if !c.Matches(slotOn(t, cal, 1, "2026-07-11 09:00:00")) {
		t.Error("土曜のみ指定で土曜午前はマッチすべき")
	}
	if c.Matches(slotOn(t, cal, 1, "2026-07-06 23:00:00")) {
		t.Error("時刻条件なしでは月曜深夜はマッチしないはず")
	}
}

func TestTimeCriteria_EvaluatesInConfiguredZone(t *testing.T) {
	cal := londonCalendar(t)
	c := NewTimeCriteria(cal, intPtr(18), nil)

	// 17:30 UTC = BST中のロンドン18:30
	utcSlot := model.NewSlot(1, time.Date(2026, 7, 6, 17, 30, 0, 0, time.UTC))
	if !c.Matches(utcSlot) {
		t.Error("判定はカレンダーの固定タイムゾーンで行うべき（17:30 UTC = ロンドン18:30）")
	}
}

func TestTimeCriteria_SameSlotSameResult(t *testing.T) {
	cal := londonCalendar(t)
	c := eveningOrWeekend(t, cal)
	slot := slotOn(t, cal, 1, "2026-07-06 19:00:00")

	first := c.Matches(slot)
	for i := 0; i < 10; i++ {
		if c.Matches(slot) != first {
			t.Fatal("同じSlotに対する判定は常に同じ結果であるべき")
		}
	}
}

func TestBuildRecipients(t *testing.T) {
	cal := londonCalendar(t)

	specs := []config.RecipientSpec{
		{Name: "Alice", Email: "alice@example.com"},
		{
			Name:  "Bob",
			Email: "bob@example.com",
			Criteria: &config.CriteriaSpec{
				AfterHour: intPtr(18),
				Weekdays:  []string{"Saturday", "sunday"},
			},
		},
	}

	recipients, err := BuildRecipients(specs, cal)
	if err != nil {
		t.Fatalf("BuildRecipientsに失敗: %v", err)
	}

	if len(recipients) != 2 {
		t.Fatalf("受信者数 = %d, want 2", len(recipients))
	}
	if recipients[0].Criteria != nil {
		t.Error("criteria省略時のCriteriaはnilであるべき")
	}
	if recipients[1].Criteria == nil {
		t.Fatal("criteria指定時のCriteriaは設定されるべき")
	}

	// 曜日名は大文字小文字を区別しない
	sat := model.NewSlot(1, time.Date(2026, 7, 11, 9, 0, 0, 0, time.UTC))
	if !recipients[1].Criteria.Matches(sat) {
		t.Error("Saturdayの指定は土曜Slotにマッチすべき")
	}
}

func TestBuildRecipients_UnknownWeekday(t *testing.T) {
	cal := londonCalendar(t)

	specs := []config.RecipientSpec{
		{
			Name:     "Carol",
			Email:    "carol@example.com",
			Criteria: &config.CriteriaSpec{Weekdays: []string{"caturday"}},
		},
	}

	if _, err := BuildRecipients(specs, cal); err == nil {
		t.Error("不明な曜日名は設定エラーとすべき")
	}
}
