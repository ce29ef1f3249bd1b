// Package model はドメインモデルを定義する。
package model

import "time"

// User は事前登録済みのサービス利用ユーザーを表す。
// 新規作成はadduserサブコマンド経由のみで、ログインでの自動作成は行わない。
// FirstName/LastName/Picture/AccessTokenはログイン成功のたびに
// Googleから取得した値で更新される。
type User struct {
	ID          string
	Email       string
	FirstName   string
	LastName    string
	Picture     string
	GoogleID    string
	AccessToken string
	IsAdmin     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
