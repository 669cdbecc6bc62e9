package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidCredential indicates a malformed, expired or mis-signed
// token. Callers must treat it as connection-fatal: close the session,
// do not retry silently.
var ErrInvalidCredential = errors.New("invalid credential")

// Claims представляет JWT claims для нашего приложения
type Claims struct {
	AccountID string `json:"account_id"`
	jwt.RegisteredClaims
}

// Verifier validates and issues signed bearer credentials.
// Verification is a pure function of token + secret + clock.
type Verifier struct {
	secret   []byte
	tokenTTL time.Duration
}

// NewVerifier создает новый Verifier.
// secret — общий для процесса HMAC-ключ из конфигурации.
func NewVerifier(secret []byte, tokenTTL time.Duration) *Verifier {
	return &Verifier{
		secret:   secret,
		tokenTTL: tokenTTL,
	}
}

// TokenTTL возвращает срок действия выдаваемых токенов
func (v *Verifier) TokenTTL() time.Duration {
	return v.tokenTTL
}

// GenerateToken создает новый JWT access token для аккаунта
func (v *Verifier) GenerateToken(accountID string) (string, error) {
	now := time.Now()

	claims := Claims{
		AccountID: accountID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(v.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "tallysync",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// Verify валидирует и парсит bearer credential.
// Любая ошибка формата, подписи или срока действия возвращается как
// ErrInvalidCredential.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrInvalidCredential
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Проверяем что используется правильный алгоритм подписи
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredential, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.AccountID == "" {
		return nil, ErrInvalidCredential
	}

	return claims, nil
}
