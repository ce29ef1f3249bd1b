// Package model はドメインモデルを定義する。
package model

import "time"

// Profile はディレクトリに掲載されるプロフィールを表す。
type Profile struct {
	ID          string
	Name        string
	FirstName   string
	Description string
	Title       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
