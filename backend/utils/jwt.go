package utils

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
)

var ErrInvalidToken = errors.New("invalid token")

func GenerateJWTToken(userID string, secret string, lifetime time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(lifetime).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseJWTToken validates signature and expiry and returns the user_id claim.
// Purpose tokens are rejected so they can never act as bearer tokens.
func ParseJWTToken(tokenString string, secret string) (string, error) {
	claims, err := parseClaims(tokenString, secret)
	if err != nil {
		return "", err
	}
	if _, scoped := claims["purpose"]; scoped {
		return "", ErrInvalidToken
	}
	return claimString(claims, "user_id")
}

// GeneratePurposeToken signs a token that only ParsePurposeToken with the
// same purpose accepts. stamp lets the issuer revoke it by changing state.
func GeneratePurposeToken(userID, purpose, stamp, secret string, lifetime time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"purpose": purpose,
		"stamp":   stamp,
		"exp":     time.Now().Add(lifetime).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ParsePurposeToken(tokenString, purpose, secret string) (userID, stamp string, err error) {
	claims, err := parseClaims(tokenString, secret)
	if err != nil {
		return "", "", err
	}
	if got, _ := claims["purpose"].(string); got != purpose {
		return "", "", ErrInvalidToken
	}
	if userID, err = claimString(claims, "user_id"); err != nil {
		return "", "", err
	}
	stamp, _ = claims["stamp"].(string)
	return userID, stamp, nil
}

func parseClaims(tokenString, secret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func claimString(claims jwt.MapClaims, key string) (string, error) {
	v, ok := claims[key].(string)
	if !ok || v == "" {
		return "", ErrInvalidToken
	}
	return v, nil
}

// BearerToken returns the token from "Authorization: Bearer <token>", or "".
func BearerToken(c *fiber.Ctx) string {
	header := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
