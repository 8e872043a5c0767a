// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"time"
)

// Slot は特定イベントの予約可能な1つの時刻を表す。
// 生成後は不変であり、(EventID, Time) の組が同一性となる。
// 取得経路が異なっても同じイベント・同じ時刻であれば同一のSlotとして扱う。
type Slot struct {
	EventID int64
	Time    time.Time
}

// NewSlot はSlotを生成する。
func NewSlot(eventID int64, t time.Time) Slot {
	return Slot{EventID: eventID, Time: t}
}

// Key は履歴ストアの一意性判定に使用するキー文字列を返す。
// 同一インスタントであればタイムゾーン表現が異なっても同じキーになるよう、
// UTCに正規化してフォーマットする。
func (s Slot) Key() string {
	return fmt.Sprintf("%d|%s", s.EventID, s.Time.UTC().Format(time.RFC3339))
}

// String はログ出力用の表現を返す。
func (s Slot) String() string {
	return fmt.Sprintf("event=%d time=%s", s.EventID, s.Time.Format("2006-01-02 15:04:05"))
}
