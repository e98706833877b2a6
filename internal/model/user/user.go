package user

import "time"

// Role controls access to administrative endpoints.
type Role string

const (
	RoleMember Role = "MEMBER"
	RoleAdmin  Role = "ADMIN"
)

// User is an account that owns sessions and feedback. The password field
// holds a bcrypt hash and is never serialized.
type User struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Email     string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Password  string    `gorm:"size:100;not null" json:"-"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Role      Role      `gorm:"size:16;not null;default:MEMBER" json:"role"`
	CreatedAt time.Time `gorm:"not null;index" json:"createdAt"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
