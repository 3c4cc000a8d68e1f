// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// ミニプログラムのOpenIDで一意に識別される。
type User struct {
	ID          string
	OpenID      string
	UnionID     string
	PhoneNumber string
	Nickname    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
