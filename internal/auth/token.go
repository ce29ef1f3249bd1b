package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hitoshi/meibo/internal/model"
)

// ErrInvalidToken は署名不一致・構造不正・期限切れなど、
// トークンが検証を通らなかったことを示す。
var ErrInvalidToken = errors.New("invalid token")

// TokenClaims はJWTペイロードを表す。
// isAdminはフロントエンドの表示用に埋め込むが、認可判断には使わない。
// 権限はガードがリクエストごとにストアの現在値を再確認する。
type TokenClaims struct {
	Email   string `json:"email"`
	IsAdmin bool   `json:"isAdmin"`
	jwt.RegisteredClaims
}

// TokenService はHS256署名付きの時限トークンを発行・検証する。
// サーバー側にトークンの台帳は持たない（ステートレス）。
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService はTokenServiceを生成する。
// 署名シークレットが空の場合はエラーを返す。開発用デフォルトへの
// フォールバックは行わない。
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &TokenService{
		secret: []byte(secret),
		ttl:    ttl,
	}, nil
}

// Issue はユーザーの現在の状態のスナップショットを署名付きトークンに
// エンコードして返す。subjectにはユーザーIDを設定する。
func (s *TokenService) Issue(user *model.User) (string, error) {
	now := time.Now()
	claims := TokenClaims{
		Email:   user.Email,
		IsAdmin: user.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify はトークンの署名と有効期限を検証し、ペイロードを返す。
// 署名不一致、構造不正、期限切れのいずれもErrInvalidTokenで失敗する。
// ユーザーストアは参照しない（純粋に暗号学的・構造的な検証のみ）。
func (s *TokenService) Verify(tokenString string) (*TokenClaims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*TokenClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
