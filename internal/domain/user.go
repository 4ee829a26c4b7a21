package domain

import "time"

type UserRole string

const (
	RoleMember UserRole = "member"
	RoleAdmin  UserRole = "admin"
)

func (r UserRole) Valid() bool {
	return r == RoleMember || r == RoleAdmin
}

// User is an account of the document-sharing platform. An account starts
// unverified and can log in only once EmailVerified is true.
type User struct {
	ID              int64      `json:"id"`
	FirstName       string     `json:"first_name"`
	LastName        string     `json:"last_name"`
	Email           string     `json:"email" validate:"required,email"`
	PasswordHash    string     `json:"-"`
	Role            UserRole   `json:"role"`
	Phone           string     `json:"phone,omitempty"`
	Affiliation     string     `json:"affiliation,omitempty"`
	Department      string     `json:"department,omitempty"`
	EmailVerified   bool       `json:"email_verified"`
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Public returns a copy safe to hand to callers: the password hash is cleared.
func (u *User) Public() *User {
	if u == nil {
		return nil
	}
	cp := *u
	cp.PasswordHash = ""
	return &cp
}
