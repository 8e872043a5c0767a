package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RecipientSpec はYAMLファイル上の受信者1件の定義。
// Criteriaが省略された場合、その受信者はすべての新着Slotに関心がある。
type RecipientSpec struct {
	Name     string        `yaml:"name"`
	Email    string        `yaml:"email"`
	Criteria *CriteriaSpec `yaml:"criteria,omitempty"`
}

// CriteriaSpec は受信者の関心条件の宣言的な定義。
// AfterHour と Weekdays はOR条件で評価される
// （例: after_hour: 18 + weekdays: [saturday, sunday] は「平日夜または週末」）。
type CriteriaSpec struct {
	// AfterHour は「この時(0-23)以降のSlotに関心がある」ことを表す。
	AfterHour *int `yaml:"after_hour,omitempty"`
	// Weekdays は関心のある曜日名の一覧（sunday〜saturday、小文字）。
	Weekdays []string `yaml:"weekdays,omitempty"`
}

// LoadRecipients は受信者定義のYAMLファイルを読み込む。
// 受信者が1件も定義されていない場合はエラーを返す。
func LoadRecipients(path string) ([]RecipientSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("受信者ファイルの読み込みに失敗しました: %w", err)
	}

	var doc struct {
		Recipients []RecipientSpec `yaml:"recipients"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("受信者ファイルのパースに失敗しました: %w", err)
	}

	if len(doc.Recipients) == 0 {
		return nil, fmt.Errorf("受信者が1件も定義されていません: %s", path)
	}

	for i, r := range doc.Recipients {
		if r.Name == "" || r.Email == "" {
			return nil, fmt.Errorf("受信者 %d 件目に name または email がありません", i+1)
		}
		if r.Criteria != nil {
			if h := r.Criteria.AfterHour; h != nil && (*h < 0 || *h > 23) {
				return nil, fmt.Errorf("受信者 %q の after_hour が範囲外です: %d", r.Name, *h)
			}
		}
	}

	return doc.Recipients, nil
}
