package session

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserRole is the user's role within the school platform
type UserRole string

const (
	// RoleStudent can see their own schedule and grades
	RoleStudent UserRole = "student"
	// RoleTeacher can see class rosters and manage grades
	RoleTeacher UserRole = "teacher"
	// RoleParent can see linked student records
	RoleParent UserRole = "parent"
	// RoleAdmin manages the school account
	RoleAdmin UserRole = "admin"
)

// IsValid checks if the role is one of the predefined valid roles
func (r UserRole) IsValid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleParent, RoleAdmin:
		return true
	default:
		return false
	}
}

// GetAllRoles returns all predefined roles
func GetAllRoles() []UserRole {
	return []UserRole{
		RoleStudent,
		RoleTeacher,
		RoleParent,
		RoleAdmin,
	}
}

// ParseRole safely parses a string into a UserRole type
func ParseRole(roleStr string) (UserRole, bool) {
	role := UserRole(strings.ToLower(strings.TrimSpace(roleStr)))
	return role, role.IsValid()
}

// User is the identity record returned by the Gateway. It is replaced
// wholesale on every successful auth step; EmailVerified is the only field
// that may be mutated in place (by VerifyEmail).
type User struct {
	ID            uuid.UUID `json:"id,omitempty"`
	Role          UserRole  `json:"role,omitempty"`
	FirstName     string    `json:"first_name,omitempty"`
	LastName      string    `json:"last_name,omitempty"`
	Email         string    `json:"email,omitempty"`
	EmailVerified bool      `json:"is_email_verified,omitempty"`
}

// DisplayName returns the user's presentable name, falling back to email.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name != "" {
		return name
	}
	return u.Email
}

// Clone returns a copy so observers never share the Manager's record.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// Credential is the persisted session record. A single row survives process
// restarts; it is written on full authentication and cleared on logout.
type Credential struct {
	bun.BaseModel `bun:"table:session_credentials,alias:cred"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	AccessToken   string     `bun:"access_token,notnull" json:"access_token,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,nullzero,type:uuid" json:"user_id,omitempty"`
	Email         string     `bun:"email,notnull" json:"email,omitempty"`
	Role          UserRole   `bun:"user_role" json:"user_role,omitempty"`
	FirstName     string     `bun:"first_name" json:"first_name,omitempty"`
	LastName      string     `bun:"last_name" json:"last_name,omitempty"`
	EmailVerified bool       `bun:"is_email_verified" json:"is_email_verified,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// NewCredential builds the persisted record for a freshly authenticated
// user.
func NewCredential(token string, user *User) *Credential {
	cred := &Credential{AccessToken: token}
	if user != nil {
		cred.UserID = user.ID
		cred.Email = user.Email
		cred.Role = user.Role
		cred.FirstName = user.FirstName
		cred.LastName = user.LastName
		cred.EmailVerified = user.EmailVerified
	}
	return cred
}

// User reconstructs the cached user record.
func (c *Credential) User() *User {
	if c == nil {
		return nil
	}
	return &User{
		ID:            c.UserID,
		Email:         c.Email,
		Role:          c.Role,
		FirstName:     c.FirstName,
		LastName:      c.LastName,
		EmailVerified: c.EmailVerified,
	}
}

// Clone returns a copy of the credential record.
func (c *Credential) Clone() *Credential {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}
