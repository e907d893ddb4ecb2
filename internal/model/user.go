package model

import "time"

// Role enumerates the roles a caller can hold.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return true
	}
	return false
}

// User is an account of any role. Students carry a class reference.
type User struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	ClassID      *int      `json:"class_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CallerIdentity is the authenticated caller passed explicitly into every
// service operation.
type CallerIdentity struct {
	ID      int
	Role    Role
	ClassID *int
}

func (c CallerIdentity) IsStudent() bool { return c.Role == RoleStudent }
func (c CallerIdentity) IsAdmin() bool   { return c.Role == RoleAdmin }

// IsStaff reports whether the caller is a teacher or an admin.
func (c CallerIdentity) IsStaff() bool {
	return c.Role == RoleTeacher || c.Role == RoleAdmin
}

// LoginRequest is the payload for user login.
type LoginRequest struct {
	Username string `json:"username" binding:"required,min=3,max=64"`
	Password string `json:"password" binding:"required,min=1"`
}

// LoginResponse is returned on successful login.
type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// CreateUserRequest is the payload for creating an account.
type CreateUserRequest struct {
	Username string `json:"username" binding:"required,min=3,max=64,alphanum"`
	Name     string `json:"name" binding:"required,min=1,max=255"`
	Password string `json:"password" binding:"required,min=6,max=72"`
	Role     Role   `json:"role" binding:"required,oneof=student teacher admin"`
	ClassID  *int   `json:"class_id" binding:"omitempty,min=1"`
}
