// Package calendar は固定タイムゾーンにおける日付・時刻演算を提供する。
// タイムゾーンは起動時に1回注入され、以降すべての呼び出し元が同じCalendarを
// 共有することで、「18時」や「土曜日」の解釈が全コンポーネントで一致する。
package calendar

import (
	"fmt"
	"time"
)

// DateTimeLayout は予約サイトが返す日時テキストの正規形式。
const DateTimeLayout = "2006-01-02 15:04:05"

// DateLayout は日付のみのテキスト形式。
const DateLayout = "2006-01-02"

// Components は日時をカレンダー成分に分解した値。
// Monthは1-12、DayOfWeekは0=日曜〜6=土曜。
type Components struct {
	Year      int
	Month     int
	Day       int
	Hour      int
	Minute    int
	Second    int
	DayOfWeek int
}

// Calendar は固定タイムゾーンでの純粋な日付演算を提供する。
// now は差し替え可能（テスト用）で、省略時はtime.Nowを使用する。
type Calendar struct {
	loc *time.Location
	now func() time.Time
}

// New は指定されたIANAタイムゾーン名のCalendarを生成する。
// タイムゾーン名が不正な場合はエラーを返す。
func New(timezone string) (*Calendar, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("タイムゾーンの読み込みに失敗しました: %w", err)
	}
	return &Calendar{loc: loc, now: time.Now}, nil
}

// NewWithNow は現在時刻の供給関数を差し替えたCalendarを生成する。
// テストで固定時刻を注入するために使用する。
func NewWithNow(timezone string, now func() time.Time) (*Calendar, error) {
	c, err := New(timezone)
	if err != nil {
		return nil, err
	}
	c.now = now
	return c, nil
}

// Location は設定されたタイムゾーンを返す。
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// Now は設定タイムゾーンにおける現在時刻を返す。
func (c *Calendar) Now() time.Time {
	return c.now().In(c.loc)
}

// DateFromNow は現在からの相対日付を (年, 月, 日) で返す。月は1-12。
// AddDateと同じ日付正規化を行うため、月末日起点の月加算は翌々月へ
// 繰り上がることがある（1月31日+1ヶ月=3月3日）。連続した月の列挙には
// YearMonthFromNowを使うこと。
func (c *Calendar) DateFromNow(addYears, addMonths, addDays int) (year, month, day int) {
	t := c.Now().AddDate(addYears, addMonths, addDays)
	return t.Year(), int(t.Month()), t.Day()
}

// YearMonthFromNow は現在の月からaddMonthsヶ月後の (年, 月) を返す。月は1-12。
// 当月1日を起点に演算する。現在日からのAddDateでは月末日（29〜31日）に
// 日付正規化で翌月が飛ばされるため（1月31日+1ヶ月=3月3日）、連続した
// 月の列挙には使えない。
func (c *Calendar) YearMonthFromNow(addMonths int) (year, month int) {
	now := c.Now()
	t := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, c.loc).AddDate(0, addMonths, 0)
	return t.Year(), int(t.Month())
}

// ParseDateTime は "yyyy-mm-dd hh:mm:ss" 形式の日時テキストを
// 設定タイムゾーンの時刻としてパースする。
func (c *Calendar) ParseDateTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateTimeLayout, s, c.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("日時テキストのパースに失敗しました (%q): %w", s, err)
	}
	return t, nil
}

// ParseDate は "yyyy-mm-dd" 形式の日付テキストを設定タイムゾーンの
// その日の0時としてパースする。
func (c *Calendar) ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, c.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("日付テキストのパースに失敗しました (%q): %w", s, err)
	}
	return t, nil
}

// Components は時刻を設定タイムゾーンのカレンダー成分に分解する。
// DayOfWeekはtime.Weekdayと同じ0=日曜〜6=土曜。
func (c *Calendar) Components(t time.Time) Components {
	lt := t.In(c.loc)
	return Components{
		Year:      lt.Year(),
		Month:     int(lt.Month()),
		Day:       lt.Day(),
		Hour:      lt.Hour(),
		Minute:    lt.Minute(),
		Second:    lt.Second(),
		DayOfWeek: int(lt.Weekday()),
	}
}
