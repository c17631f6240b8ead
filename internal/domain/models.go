package domain

import "time"

type Role string

const (
	RoleUser      Role = "USER"
	RolePlanner   Role = "PLANNER"
	RoleAdmin     Role = "ADMIN"
	RoleDeveloper Role = "DEVELOPER"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RolePlanner, RoleAdmin, RoleDeveloper:
		return true
	}
	return false
}

// CanManageMaterials reports whether the role may create and edit materials
// and alarm rules.
func (r Role) CanManageMaterials() bool {
	return r == RolePlanner || r == RoleAdmin || r == RoleDeveloper
}

func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleDeveloper
}

type User struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Matricula   string     `json:"matricula"`
	Role        Role       `json:"role"`
	AvatarURL   string     `json:"avatar_url,omitempty"`
	FirstAccess bool       `json:"first_access"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

type UserWithPassword struct {
	User
	PasswordHash         string
	RecoveryPasswordHash string
}

type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// UserDevice is one FCM registration token for the push alarm channel.
type UserDevice struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Token     string    `json:"token"`
	Platform  string    `json:"platform"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SMTPSettings is the singleton outgoing-mail configuration.
type SMTPSettings struct {
	Host      string    `json:"host"`
	Port      int       `json:"port"`
	Username  string    `json:"username"`
	Password  string    `json:"password,omitempty"`
	TLSMode   string    `json:"tls_mode"`
	FromName  string    `json:"from_name"`
	FromEmail string    `json:"from_email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
