// Package notify は新着Slotの受信者別の絞り込みと通知配信を提供する。
package notify

import (
	"fmt"
	"strings"

	"github.com/hitoshi/slotwatch/internal/calendar"
	"github.com/hitoshi/slotwatch/internal/config"
	"github.com/hitoshi/slotwatch/internal/model"
)

// weekdayNames は設定ファイル上の曜日名からtime.Weekday相当の数値への対応。
var weekdayNames = map[string]int{
	"sunday":    0,
	"monday":    1,
	"tuesday":   2,
	"wednesday": 3,
	"thursday":  4,
	"friday":    5,
	"saturday":  6,
}

// TimeCriteria は時刻と曜日に基づく関心条件。
// 「AfterHour時以降」または「指定曜日」のいずれかを満たすSlotにマッチする
// （例: 18時以降 または 土日 = 平日夜と週末）。
// Slotの時刻のみの純粋関数であり、評価はカレンダーの固定タイムゾーンで行う。
type TimeCriteria struct {
	cal       *calendar.Calendar
	afterHour int // -1は時刻条件なし
	weekdays  map[int]bool
}

// NewTimeCriteria はTimeCriteriaを生成する。
// afterHourがnilの場合は時刻条件なし、weekdaysが空の場合は曜日条件なし。
func NewTimeCriteria(cal *calendar.Calendar, afterHour *int, weekdays []int) *TimeCriteria {
	c := &TimeCriteria{cal: cal, afterHour: -1, weekdays: make(map[int]bool)}
	if afterHour != nil {
		c.afterHour = *afterHour
	}
	for _, d := range weekdays {
		c.weekdays[d] = true
	}
	return c
}

// Matches はSlotが関心条件を満たすかどうかを返す。
func (c *TimeCriteria) Matches(slot model.Slot) bool {
	comp := c.cal.Components(slot.Time)
	if c.afterHour >= 0 && comp.Hour >= c.afterHour {
		return true
	}
	return c.weekdays[comp.DayOfWeek]
}

// compile-time interface check
var _ model.SlotPredicate = (*TimeCriteria)(nil)

// BuildRecipients は設定ファイル上の受信者定義から受信者モデルを構築する。
// criteriaが省略された受信者のCriteriaはnil（すべての新着Slotに関心）となる。
// 不明な曜日名は設定エラーとして起動時に失敗させる。
func BuildRecipients(specs []config.RecipientSpec, cal *calendar.Calendar) ([]model.Recipient, error) {
	recipients := make([]model.Recipient, 0, len(specs))

	for _, spec := range specs {
		r := model.Recipient{Name: spec.Name, Email: spec.Email}

		if spec.Criteria != nil {
			var weekdays []int
			for _, name := range spec.Criteria.Weekdays {
				d, ok := weekdayNames[strings.ToLower(name)]
				if !ok {
					return nil, fmt.Errorf("受信者 %q の曜日名が不正です: %q", spec.Name, name)
				}
				weekdays = append(weekdays, d)
			}
			r.Criteria = NewTimeCriteria(cal, spec.Criteria.AfterHour, weekdays)
		}

		recipients = append(recipients, r)
	}

	return recipients, nil
}
