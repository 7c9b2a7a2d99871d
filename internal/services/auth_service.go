package services

import (
	"errors"
	"os"
	"time"

	"scanprint/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthService struct {
	db *gorm.DB
}

func NewAuthService(db *gorm.DB) *AuthService {
	return &AuthService{db: db}
}

type JWTClaims struct {
	OperatorID uint   `json:"operator_id"`
	Username   string `json:"username"`
	Role       string `json:"role"`
	jwt.RegisteredClaims
}

// EnsureDefaultAccounts seeds the two fixed terminal accounts. The warehouse
// runs with exactly one admin terminal and one shipper terminal; credentials
// come from env so deployments can rotate them.
func (as *AuthService) EnsureDefaultAccounts() error {
	accounts := []struct {
		userKey, passKey, defaultUser, defaultPass, role string
	}{
		{"ADMIN_USER", "ADMIN_PASS", "admin", "admin123", "ADMIN"},
		{"SHIPPER_USER", "SHIPPER_PASS", "shipper", "shipper123", "SHIPPER"},
	}

	for _, account := range accounts {
		username := getEnvOr(account.userKey, account.defaultUser)
		password := getEnvOr(account.passKey, account.defaultPass)

		var existing models.Operator
		if err := as.db.Where("username = ?", username).First(&existing).Error; err == nil {
			continue
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}

		operator := models.Operator{
			Username:     username,
			PasswordHash: string(hashed),
			Role:         account.role,
			IsActive:     true,
		}
		if err := as.db.Create(&operator).Error; err != nil {
			return err
		}
	}

	return nil
}

// Login authenticates an operator and returns a JWT token
func (as *AuthService) Login(req models.OperatorLogin) (string, *models.OperatorResponse, error) {
	var operator models.Operator
	if err := as.db.Where("username = ?", req.Username).First(&operator).Error; err != nil {
		return "", nil, errors.New("invalid username or password")
	}

	if !operator.IsActive {
		return "", nil, errors.New("account is deactivated")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(operator.PasswordHash), []byte(req.Password)); err != nil {
		return "", nil, errors.New("invalid username or password")
	}

	token, err := as.generateJWT(operator)
	if err != nil {
		return "", nil, err
	}

	return token, &models.OperatorResponse{
		ID:       operator.ID,
		Username: operator.Username,
		Role:     operator.Role,
		ScanMode: models.ScanModeForRole(operator.Role),
	}, nil
}

// generateJWT creates a JWT token for the operator
func (as *AuthService) generateJWT(operator models.Operator) (string, error) {
	claims := JWTClaims{
		OperatorID: operator.ID,
		Username:   operator.Username,
		Role:       operator.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)), // 24 hours
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(jwtSecret()))
}

// ValidateToken validates a JWT token and returns the operator claims
func (as *AuthService) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(jwtSecret()), nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}

func jwtSecret() string {
	return getEnvOr("JWT_SECRET", "scanprint-super-secret-jwt-key-change-in-production")
}

func getEnvOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
