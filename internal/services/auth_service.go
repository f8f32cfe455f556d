package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const SessionTTL = time.Hour

// Claims carries only the account id; expiry is the sole termination path.
type Claims struct {
	AccountID string `json:"account_id"`
	jwt.RegisteredClaims
}

type AuthService interface {
	// Hash is the adaptive salted hash used for passwords and OTP codes.
	Hash(secret string) (string, error)
	Compare(hash, secret string) bool
	IssueToken(accountID string) (string, error)
	ParseToken(token string) (*Claims, error)
}

type authService struct {
	secret []byte
	cost   int
	now    func() time.Time
}

func NewAuthService(secret string) AuthService {
	return &authService{secret: []byte(secret), cost: bcrypt.DefaultCost, now: time.Now}
}

func (s *authService) Hash(secret string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(secret), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(b), nil
}

func (s *authService) Compare(hash, secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

func (s *authService) IssueToken(accountID string) (string, error) {
	now := s.now()
	claims := Claims{
		AccountID: accountID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(SessionTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

func (s *authService) ParseToken(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return s.secret, nil
	}, jwt.WithExpirationRequired(), jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return nil, ErrUnauthorized
	}
	if claims.AccountID == "" {
		return nil, errors.Join(ErrUnauthorized, errors.New("token has no account"))
	}
	return claims, nil
}
