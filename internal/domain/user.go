package domain

import "time"

// Field limits shared by validation and storage.
const (
	UsernameMaxLen = 150
	EmailMaxLen    = 254
	NameMaxLen     = 150
)

type User struct {
	UserID      string     `json:"-" dynamodbav:"user_id"`
	Username    string     `json:"username" dynamodbav:"username"`
	Email       string     `json:"email" dynamodbav:"email"`
	Role        Role       `json:"role" dynamodbav:"role"`
	Bio         string     `json:"bio" dynamodbav:"bio"`
	FirstName   string     `json:"first_name" dynamodbav:"first_name"`
	LastName    string     `json:"last_name" dynamodbav:"last_name"`
	LastLoginAt *time.Time `json:"-" dynamodbav:"last_login_at"`
	CreatedAt   time.Time  `json:"-" dynamodbav:"created_at"`
	UpdatedAt   time.Time  `json:"-" dynamodbav:"updated_at"`
}

// Verified reports whether the user has exchanged a confirmation code at least once.
func (u *User) Verified() bool { return u.LastLoginAt != nil }

// SignupRequest is the public, passwordless registration payload.
type SignupRequest struct {
	Username string `json:"username" validate:"required,username"`
	Email    string `json:"email" validate:"required,max=254,email"`
}

// CreateUserRequest is used by admins to create accounts directly.
type CreateUserRequest struct {
	Username  string `json:"username" validate:"required,username"`
	Email     string `json:"email" validate:"required,max=254,email"`
	Role      Role   `json:"role" validate:"omitempty,role"`
	Bio       string `json:"bio"`
	FirstName string `json:"first_name" validate:"max=150"`
	LastName  string `json:"last_name" validate:"max=150"`
}

type UpdateUserRequest struct {
	Username  *string `json:"username" validate:"omitempty,username"`
	Email     *string `json:"email" validate:"omitempty,max=254,email"`
	Role      *Role   `json:"role" validate:"omitempty,role"`
	Bio       *string `json:"bio"`
	FirstName *string `json:"first_name" validate:"omitempty,max=150"`
	LastName  *string `json:"last_name" validate:"omitempty,max=150"`
}

// TokenRequest exchanges a confirmation code for a bearer token.
type TokenRequest struct {
	Username         string `json:"username" validate:"required"`
	ConfirmationCode string `json:"confirmation_code" validate:"required"`
}
