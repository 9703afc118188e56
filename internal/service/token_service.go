package service

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenService emite y valida los tres tipos de token firmados: tickets de
// activación, access tokens y refresh tokens. Cada tipo usa un secreto propio.
type TokenService struct {
	activationSecret []byte
	accessSecret     []byte
	refreshSecret    []byte
	activationTTL    time.Duration
	accessTTL        time.Duration
	refreshTTL       time.Duration
	issuer           string
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// ActivationTicket es el contenido verificado de un ticket de activación.
type ActivationTicket struct {
	Name         string
	Email        string
	PasswordHash string
	Code         string
}

type activationClaims struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	PasswordHash string `json:"pwd"`
	Code         string `json:"code"`
	jwt.RegisteredClaims
}

type authClaims struct {
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

var (
	ErrTokenInvalid  = errors.New("token invalid")
	ErrTicketInvalid = errors.New("activation ticket invalid or expired")
)

func NewTokenService(activationSecret, accessSecret, refreshSecret string, activationTTL, accessTTL, refreshTTL time.Duration) *TokenService {
	if activationTTL <= 0 {
		activationTTL = 5 * time.Minute
	}
	if accessTTL <= 0 {
		accessTTL = 5 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 3 * 24 * time.Hour
	}
	return &TokenService{
		activationSecret: []byte(activationSecret),
		accessSecret:     []byte(accessSecret),
		refreshSecret:    []byte(refreshSecret),
		activationTTL:    activationTTL,
		accessTTL:        accessTTL,
		refreshTTL:       refreshTTL,
		issuer:           "elearn-api",
	}
}

func (s *TokenService) AccessTTL() time.Duration  { return s.accessTTL }
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

// NewActivationTicket firma los datos del candidato junto con un código de
// activación de 4 dígitos. El ticket caduca a los 5 minutos.
func (s *TokenService) NewActivationTicket(name, email, passwordHash string) (string, string, error) {
	if len(s.activationSecret) == 0 {
		return "", "", ErrTicketInvalid
	}
	code, err := generateActivationCode()
	if err != nil {
		return "", "", err
	}
	ticket, err := s.signActivation(name, email, passwordHash, code, time.Now().UTC())
	if err != nil {
		return "", "", err
	}
	return ticket, code, nil
}

func (s *TokenService) signActivation(name, email, passwordHash, code string, now time.Time) (string, error) {
	claims := activationClaims{
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		Code:         code,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.activationTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.activationSecret)
}

// ParseActivationTicket valida firma y vigencia del ticket.
func (s *TokenService) ParseActivationTicket(ticket string) (ActivationTicket, error) {
	if len(s.activationSecret) == 0 || strings.TrimSpace(ticket) == "" {
		return ActivationTicket{}, ErrTicketInvalid
	}
	var claims activationClaims
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	_, err := parser.ParseWithClaims(ticket, &claims, func(_ *jwt.Token) (any, error) {
		return s.activationSecret, nil
	})
	if err != nil {
		return ActivationTicket{}, ErrTicketInvalid
	}
	if claims.Issuer != s.issuer || strings.TrimSpace(claims.Email) == "" {
		return ActivationTicket{}, ErrTicketInvalid
	}
	return ActivationTicket{
		Name:         claims.Name,
		Email:        claims.Email,
		PasswordHash: claims.PasswordHash,
		Code:         claims.Code,
	}, nil
}

// GeneratePair emite un access/refresh pair para el usuario.
func (s *TokenService) GeneratePair(userID string) (TokenPair, error) {
	if len(s.accessSecret) == 0 || len(s.refreshSecret) == 0 {
		return TokenPair{}, ErrTokenInvalid
	}
	if strings.TrimSpace(userID) == "" {
		return TokenPair{}, ErrTokenInvalid
	}
	now := time.Now().UTC()
	access, err := s.signAuthToken(userID, "access", s.accessSecret, s.accessTTL, now)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.signAuthToken(userID, "refresh", s.refreshSecret, s.refreshTTL, now)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}, nil
}

func (s *TokenService) ParseAccessToken(token string) (string, error) {
	return s.parseAuthToken(token, "access", s.accessSecret)
}

func (s *TokenService) ParseRefreshToken(token string) (string, error) {
	return s.parseAuthToken(token, "refresh", s.refreshSecret)
}

func (s *TokenService) signAuthToken(userID, tokenType string, secret []byte, ttl time.Duration, now time.Time) (string, error) {
	claims := authClaims{
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func (s *TokenService) parseAuthToken(token, wantType string, secret []byte) (string, error) {
	if len(secret) == 0 || strings.TrimSpace(token) == "" {
		return "", ErrTokenInvalid
	}
	var claims authClaims
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	_, err := parser.ParseWithClaims(token, &claims, func(_ *jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		return "", ErrTokenInvalid
	}
	if claims.TokenType != wantType || claims.Issuer != s.issuer {
		return "", ErrTokenInvalid
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", ErrTokenInvalid
	}
	return claims.Subject, nil
}

// generateActivationCode devuelve un código numérico en [1000, 9999].
func generateActivationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%04d", n.Int64()+1000), nil
}
