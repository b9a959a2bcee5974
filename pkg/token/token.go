package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultAlgorithm は署名アルゴリズムの既定値。
	DefaultAlgorithm = "HS256"
	// DefaultTTL はトークンの有効期間。
	DefaultTTL = 1800 * time.Second
)

var (
	// ErrInvalidToken はトークンのデコード・署名検証・期限検証のいずれかに失敗したことを表す。
	ErrInvalidToken = errors.New("invalid token")
	// ErrUnsupportedAlgorithm はHMAC系以外の署名アルゴリズムが指定されたことを表す。
	ErrUnsupportedAlgorithm = errors.New("unsupported signing algorithm")
)

// Claims はトークンのクレーム（ペイロード）を表す。
type Claims struct {
	jwt.RegisteredClaims
	// Username はトークンが主張するユーザー名。
	Username string `json:"username"`
}

// Secret は署名鍵とアルゴリズム名の組。起動時に一度だけ生成・読み込みされ、以降は変更しない。
type Secret struct {
	// Key はHMAC署名鍵。
	Key []byte
	// Algorithm はJWTヘッダーのalgに一致すべきアルゴリズム名（例: "HS256"）。
	Algorithm string
}

// NewSecret はアルゴリズム名を検証してSecretを生成する。
func NewSecret(key []byte, algorithm string) (Secret, error) {
	if len(key) == 0 {
		return Secret{}, errors.New("署名鍵が空です")
	}
	if _, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC); !ok {
		return Secret{}, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, algorithm)
	}
	return Secret{Key: key, Algorithm: algorithm}, nil
}

// Issuer はSecretを用いてトークンを発行・検証する。
// 生成後は読み取り専用のため、複数のgoroutineから同時に使用できる。
type Issuer struct {
	secret Secret
	method jwt.SigningMethod
	ttl    time.Duration
	now    func() time.Time
}

// Option はIssuerの設定を変更する。
type Option func(*Issuer)

// WithTTL はトークンの有効期間を変更する。
func WithTTL(ttl time.Duration) Option {
	return func(i *Issuer) { i.ttl = ttl }
}

// WithClock は発行・検証に使う現在時刻の取得関数を差し替える。
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

// NewIssuer は新しいIssuerを生成する。secretはNewSecretで検証済みであること。
func NewIssuer(secret Secret, opts ...Option) *Issuer {
	i := &Issuer{
		secret: secret,
		method: jwt.GetSigningMethod(secret.Algorithm),
		ttl:    DefaultTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Issue はusernameを主張するトークンを発行する。有効期限は発行時刻+TTL。
func (i *Issuer) Issue(username string) (string, error) {
	now := i.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Username: username,
	}

	signed, err := jwt.NewWithClaims(i.method, claims).SignedString(i.secret.Key)
	if err != nil {
		return "", fmt.Errorf("トークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// Verify はトークンの署名・アルゴリズム・有効期限を検証し、クレームを返す。
// 失敗時は常にErrInvalidTokenをラップしたエラーを返す。
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return i.secret.Key, nil
	},
		jwt.WithValidMethods([]string{i.secret.Algorithm}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Username == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Decode は署名を検証せずにクレームを取り出す。
// 呼び出し側は、トークンが上流で検証済みであることを前提として使用すること。
func Decode(tokenString string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Username == "" {
		return nil, fmt.Errorf("%w: usernameクレームがありません", ErrInvalidToken)
	}
	return claims, nil
}
