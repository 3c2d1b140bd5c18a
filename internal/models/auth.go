package models

import "github.com/golang-jwt/jwt/v5"

// UserRole enumerates the principal roles recognised by route guards.
type UserRole string

// Recognised roles. Token issuance belongs to an external collaborator; the
// engine only reads the role carried by the request.
const (
	RoleAdmin       UserRole = "ADMIN"
	RoleStaff       UserRole = "STAFF"
	RoleTrainer     UserRole = "TRAINER"
	RoleParticipant UserRole = "PARTICIPANT"
)

// JWTClaims represents the JWT payload carried by authenticated requests.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// Pagination describes list metadata in the response envelope.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
