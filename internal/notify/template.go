package notify

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"sort"
	texttemplate "text/template"

	"github.com/hitoshi/slotwatch/internal/calendar"
	"github.com/hitoshi/slotwatch/internal/model"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// slotTimeLayout はメール本文中のSlot時刻の表示形式。
const slotTimeLayout = "2006-01-02 (Mon) 15:04"

// MailBody は描画済みのメッセージ本文。リッチ形式とプレーン形式の両方を持つ。
type MailBody struct {
	HTML string
	Text string
}

// Renderer は受信者向けメッセージ本文の描画インターフェース。
type Renderer interface {
	// Render は受信者名・イベント一覧・通知対象Slotからメッセージ本文を描画する。
	Render(name string, events []model.Event, slots []model.Slot) (MailBody, error)
}

// TemplateRenderer は埋め込みテンプレートによるRendererの実装。
// HTML本文はhtml/template、プレーンテキスト本文はtext/templateで描画する。
type TemplateRenderer struct {
	cal  *calendar.Calendar
	html *htmltemplate.Template
	text *texttemplate.Template
}

// NewTemplateRenderer はTemplateRendererを生成する。
// テンプレートのパースに失敗した場合はエラーを返す（起動時に検出される）。
func NewTemplateRenderer(cal *calendar.Calendar) (*TemplateRenderer, error) {
	html, err := htmltemplate.ParseFS(templatesFS, "templates/mail.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("HTMLテンプレートのパースに失敗しました: %w", err)
	}
	text, err := texttemplate.ParseFS(templatesFS, "templates/mail.txt.tmpl")
	if err != nil {
		return nil, fmt.Errorf("テキストテンプレートのパースに失敗しました: %w", err)
	}
	return &TemplateRenderer{cal: cal, html: html, text: text}, nil
}

// eventView はテンプレートに渡すイベント1件分の表示データ。
type eventView struct {
	Name  string
	Slots []string
}

// mailView はテンプレートに渡す表示データのルート。
type mailView struct {
	Name   string
	Events []eventView
}

// Render は受信者向けメッセージ本文を描画する。
// SlotはイベントごとにまとめてSlot時刻の昇順で表示する。
// Slotを1件も持たないイベントは本文に含めない。
func (r *TemplateRenderer) Render(name string, events []model.Event, slots []model.Slot) (MailBody, error) {
	view := r.buildView(name, events, slots)

	var html bytes.Buffer
	if err := r.html.Execute(&html, view); err != nil {
		return MailBody{}, fmt.Errorf("HTML本文の描画に失敗しました: %w", err)
	}

	var text bytes.Buffer
	if err := r.text.Execute(&text, view); err != nil {
		return MailBody{}, fmt.Errorf("テキスト本文の描画に失敗しました: %w", err)
	}

	return MailBody{HTML: html.String(), Text: text.String()}, nil
}

// buildView はイベントごとにSlotをまとめた表示データを構築する。
func (r *TemplateRenderer) buildView(name string, events []model.Event, slots []model.Slot) mailView {
	byEvent := make(map[int64][]model.Slot)
	for _, s := range slots {
		byEvent[s.EventID] = append(byEvent[s.EventID], s)
	}

	view := mailView{Name: name}
	for _, e := range events {
		eventSlots := byEvent[e.ID]
		if len(eventSlots) == 0 {
			continue
		}
		sort.Slice(eventSlots, func(i, j int) bool {
			return eventSlots[i].Time.Before(eventSlots[j].Time)
		})

		ev := eventView{Name: e.Name}
		for _, s := range eventSlots {
			ev.Slots = append(ev.Slots, s.Time.In(r.cal.Location()).Format(slotTimeLayout))
		}
		view.Events = append(view.Events, ev)
	}

	return view
}

// compile-time interface check
var _ Renderer = (*TemplateRenderer)(nil)
