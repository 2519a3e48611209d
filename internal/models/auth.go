package models

import "github.com/golang-jwt/jwt/v5"

// UserRole represents the roles recognised by the API.
type UserRole string

const (
	RoleAdmin      UserRole = "ADMIN"
	RoleInstructor UserRole = "INSTRUCTOR"
	RoleStudent    UserRole = "STUDENT"
)

// JWTClaims is the access token payload issued by the identity provider.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// Snapshot copies the identity fields stored on an enrollment.
func (c *JWTClaims) Snapshot() UserSnapshot {
	return UserSnapshot{UserID: c.UserID, FullName: c.FullName, Email: c.Email}
}

// Instructor copies the identity fields stored on an authored course.
func (c *JWTClaims) Instructor() Instructor {
	return Instructor{ID: c.UserID, FullName: c.FullName, Email: c.Email}
}

// SystemMetrics is a JSON friendly snapshot of process counters.
type SystemMetrics struct {
	RequestsTotal            uint64  `json:"requests_total"`
	AverageRequestDurationMs float64 `json:"average_request_duration_ms"`
	CacheHits                uint64  `json:"cache_hits"`
	CacheMisses              uint64  `json:"cache_misses"`
	CacheHitRatio            float64 `json:"cache_hit_ratio"`
	Enrollments              uint64  `json:"enrollments"`
	CertificatesIssued       uint64  `json:"certificates_issued"`
	Submissions              uint64  `json:"submissions"`
	GradingFailures          uint64  `json:"grading_failures"`
	Goroutines               int     `json:"goroutines"`
}
