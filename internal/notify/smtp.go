package notify

import (
	"context"
	"fmt"
	"mime"
	"net/smtp"
	"strings"
)

// Message は1受信者向けの配信メッセージ。
type Message struct {
	To      string
	Subject string
	Body    MailBody
}

// Deliverer はメッセージ配信のインターフェース。
// 配信手段はコアにとって不透明であり、テストではフェイクに差し替える。
type Deliverer interface {
	Deliver(ctx context.Context, msg Message) error
}

// SMTPConfig はSMTP配信の設定。
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

// SMTPDeliverer はnet/smtpによるDelivererの実装。
// HTMLとプレーンテキストをmultipart/alternativeで送信する。
type SMTPDeliverer struct {
	config SMTPConfig
}

// NewSMTPDeliverer はSMTPDelivererを生成する。
func NewSMTPDeliverer(config SMTPConfig) *SMTPDeliverer {
	return &SMTPDeliverer{config: config}
}

// mimeBoundary はmultipart/alternativeの区切り文字列。
// 本文はテンプレート由来のテキストであり、この文字列と衝突することはない。
const mimeBoundary = "=_slotwatch_alt_boundary"

// Deliver はメッセージを1通送信する。
// net/smtpはコンテキストに対応していないため、キャンセル済みの場合のみ
// 送信前に中断する。
func (d *SMTPDeliverer) Deliver(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if d.config.Host == "" {
		return fmt.Errorf("SMTPが設定されていません")
	}

	from := d.config.From
	if d.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("UTF-8", d.config.FromName), d.config.From)
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("From: %s\r\n", from))
	b.WriteString(fmt.Sprintf("To: %s\r\n", msg.To))
	// 件名は非ASCIIを含むためMIMEエンコードする
	b.WriteString(fmt.Sprintf("Subject: %s\r\n", mime.QEncoding.Encode("UTF-8", msg.Subject)))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=%q\r\n", mimeBoundary))
	b.WriteString("\r\n")

	// プレーンテキストパートを先に置く（alternativeは後のパートが優先される）
	b.WriteString(fmt.Sprintf("--%s\r\n", mimeBoundary))
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body.Text)
	b.WriteString("\r\n")

	b.WriteString(fmt.Sprintf("--%s\r\n", mimeBoundary))
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body.HTML)
	b.WriteString("\r\n")

	b.WriteString(fmt.Sprintf("--%s--\r\n", mimeBoundary))

	addr := fmt.Sprintf("%s:%d", d.config.Host, d.config.Port)
	var auth smtp.Auth
	if d.config.Username != "" {
		auth = smtp.PlainAuth("", d.config.Username, d.config.Password, d.config.Host)
	}

	if err := smtp.SendMail(addr, auth, d.config.From, []string{msg.To}, []byte(b.String())); err != nil {
		return fmt.Errorf("SMTP送信に失敗しました: %w", err)
	}

	return nil
}

// compile-time interface check
var _ Deliverer = (*SMTPDeliverer)(nil)
