package models

import "github.com/golang-jwt/jwt/v5"

// UserRole mirrors the roles issued by the portal's identity service.
type UserRole string

const (
	RoleAdmin    UserRole = "admin"
	RoleEmployee UserRole = "employee"
)

// JWTClaims is the access-token payload. Tokens are minted by the portal's
// identity service; this API only verifies them.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}
