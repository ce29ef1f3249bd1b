// Package security はアプリケーションのセキュリティ機能を提供する。
//
// DescriptionSanitizerService はプロフィールの紹介文をサニタイズし、
// XSS攻撃などのセキュリティリスクから閲覧者を保護する。
// bluemondayライブラリを使用した許可リストベースのポリシーで、
// 最小限の整形タグのみを通過させる。
package security

import (
	"github.com/microcosm-cc/bluemonday"
)

// DescriptionSanitizerService は紹介文のサニタイズ機能のインターフェースを定義する。
// プロフィールの保存前に使用される。
type DescriptionSanitizerService interface {
	// Sanitize は紹介文をサニタイズして安全なテキストを返す。
	// 許可タグ（p, br, ul, ol, li, strong, em）のみを通過させ、
	// script, iframe, styleタグおよびon*イベント属性を除去する。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// descriptionSanitizer はDescriptionSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type descriptionSanitizer struct {
	policy *bluemonday.Policy
}

// NewDescriptionSanitizer はDescriptionSanitizerServiceの新しいインスタンスを生成する。
// ポリシーの内容:
//   - 許可タグ: p, br, ul, ol, li, strong, em
//   - 禁止タグ: script, iframe, style および全てのon*イベント属性
//   - リンクや画像は紹介文には不要のため許可しない
func NewDescriptionSanitizer() *descriptionSanitizer {
	p := bluemonday.NewPolicy()

	// 許可リストに含めないタグは自動的に除去される
	p.AllowElements(
		"p", "br", "ul", "ol", "li",
		"strong", "em",
	)

	return &descriptionSanitizer{
		policy: p,
	}
}

// Sanitize は紹介文をサニタイズして安全なテキストを返す。
func (s *descriptionSanitizer) Sanitize(raw string) string {
	return s.policy.Sanitize(raw)
}
