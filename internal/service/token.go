package service

import (
	"errors"
	"time"

	"github.com/shipcycle/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenInvalid 令牌无效或签名不匹配
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenRoleInvalid 令牌角色缺失或非法
	ErrTokenRoleInvalid = errors.New("token role invalid")
)

// AuthClaims 访问令牌声明。
// 账号并不落库在本服务内，身份与角色完全由签发方写入令牌携带。
type AuthClaims struct {
	AccountID uint   `json:"account_id"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// TokenService 访问令牌签发与校验
type TokenService struct {
	cfg *config.Config
}

// NewTokenService 创建令牌服务
func NewTokenService(cfg *config.Config) *TokenService {
	return &TokenService{cfg: cfg}
}

// IssueToken 签发 HS256 访问令牌
func (s *TokenService) IssueToken(accountID uint, role string) (string, time.Time, error) {
	if accountID == 0 || role == "" {
		return "", time.Time{}, ErrTokenRoleInvalid
	}

	expiresAt := time.Now().Add(time.Duration(s.cfg.JWT.ExpireHours) * time.Hour)

	claims := AuthClaims{
		AccountID: accountID,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.cfg.JWT.SecretKey))
	if err != nil {
		return "", time.Time{}, err
	}

	return tokenString, expiresAt, nil
}

// ParseToken 解析并校验访问令牌
func (s *TokenService) ParseToken(tokenString string) (*AuthClaims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	token, err := parser.ParseWithClaims(tokenString, &AuthClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.JWT.SecretKey), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*AuthClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.AccountID == 0 || claims.Role == "" {
		return nil, ErrTokenRoleInvalid
	}

	return claims, nil
}
