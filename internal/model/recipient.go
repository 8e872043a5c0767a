package model

// SlotPredicate は受信者の関心条件を表す述語。
// Slotの時刻（およびそこから導かれるカレンダー成分）のみの純粋関数でなければ
// ならず、外部の可変状態に依存してはならない。
type SlotPredicate interface {
	// Matches はSlotが関心条件を満たすかどうかを返す。
	// 同じSlotに対しては常に同じ結果を返すこと。
	Matches(slot Slot) bool
}

// Recipient は通知先の受信者を表す。
// 静的設定から読み込まれ、実行中は読み取り専用。
type Recipient struct {
	Name  string
	Email string
	// Criteria がnilの場合はすべての新着Slotに関心があるものとして扱う。
	Criteria SlotPredicate
}

// InterestedSlots は受信者の関心条件を満たすSlotのみを抽出する。
// Criteriaがnilの場合は全Slotを返す。
func (r Recipient) InterestedSlots(slots []Slot) []Slot {
	if r.Criteria == nil {
		return slots
	}
	matched := make([]Slot, 0, len(slots))
	for _, s := range slots {
		if r.Criteria.Matches(s) {
			matched = append(matched, s)
		}
	}
	return matched
}
