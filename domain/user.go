package domain

// Role distinguishes administrators from ordinary members. Admins see and
// manage every card, category and account; members only their own cards.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Valid reports whether r is one of the two known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleMember
}

// User is an application account. Passwords are stored and compared as
// plaintext, matching what the backing user table holds. Hashing them
// would change the table schema and the login lookup.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Password string `json:"password,omitempty"`
	FullName string `json:"fullName"`
	Role     Role   `json:"role"`
}

// IsAdmin reports whether the user holds the administrator role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Sanitized returns a copy of the user with the password removed, safe to
// hand to clients.
func (u User) Sanitized() User {
	u.Password = ""
	return u
}

// UserDraft carries the fields required to create an account.
type UserDraft struct {
	Username string `json:"username"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
	Role     Role   `json:"role"`
}

// UserUpdate carries partial updates for an account.
type UserUpdate struct {
	Username *string `json:"username,omitempty"`
	Password *string `json:"password,omitempty"`
	FullName *string `json:"fullName,omitempty"`
	Role     *Role   `json:"role,omitempty"`
}

// Empty reports whether the update carries no fields at all.
func (u UserUpdate) Empty() bool {
	return u.Username == nil && u.Password == nil && u.FullName == nil && u.Role == nil
}

// ApplyTo merges the set fields of the update into the user.
func (u UserUpdate) ApplyTo(target *User) {
	if u.Username != nil {
		target.Username = *u.Username
	}
	if u.Password != nil {
		target.Password = *u.Password
	}
	if u.FullName != nil {
		target.FullName = *u.FullName
	}
	if u.Role != nil {
		target.Role = *u.Role
	}
}
