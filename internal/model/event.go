package model

// Event は予約サイト上の予約対象（コース）を表す。
// コアはIDと価格のみを参照し、価格0のイベントをスキャン対象とする。
// 1回の実行の間だけ保持され、永続化はしない。
type Event struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// IsFree は無料（予約対象）イベントかどうかを返す。
func (e Event) IsFree() bool {
	return e.Price == 0
}

// FilterFreeEvents はイベント一覧から無料イベントのみを抽出する。
func FilterFreeEvents(events []Event) []Event {
	free := make([]Event, 0, len(events))
	for _, e := range events {
		if e.IsFree() {
			free = append(free, e)
		}
	}
	return free
}
