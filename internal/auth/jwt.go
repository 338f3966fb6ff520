package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	AccessCookie  = "fluxior_access"
	RefreshCookie = "fluxior_refresh"

	KindAccess  = "access"
	KindRefresh = "refresh"
)

var ErrInvalidToken = errors.New("invalid token")

type Manager struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Issuer     string
	now        func() time.Time
}

type Claims struct {
	Email string `json:"email"`
	Kind  string `json:"kind"`
	jwt.RegisteredClaims
}

func NewManager(secret string, accessTTL, refreshTTL time.Duration, issuer string) *Manager {
	return &Manager{
		Secret:     []byte(secret),
		AccessTTL:  accessTTL,
		RefreshTTL: refreshTTL,
		Issuer:     issuer,
		now:        time.Now,
	}
}

func (m *Manager) clock() time.Time {
	if m.now != nil {
		return m.now()
	}
	return time.Now()
}

func (m *Manager) newToken(userID, email, kind string, ttl time.Duration) (string, error) {
	now := m.clock()
	claims := Claims{
		Email: email,
		Kind:  kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    m.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.Secret)
}

func (m *Manager) NewAccessToken(userID, email string) (string, error) {
	return m.newToken(userID, email, KindAccess, m.AccessTTL)
}

func (m *Manager) NewRefreshToken(userID, email string) (string, error) {
	return m.newToken(userID, email, KindRefresh, m.RefreshTTL)
}

func (m *Manager) Parse(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return m.Secret, nil
	}, jwt.WithIssuer(m.Issuer), jwt.WithTimeFunc(m.clock))
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
