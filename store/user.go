package store

// Role is the type of a user's role.
type Role string

const (
	// RoleAdmin is the ADMIN role.
	RoleAdmin Role = "ADMIN"
	// RoleMember is the MEMBER role.
	RoleMember Role = "MEMBER"
)

func (r Role) String() string {
	return string(r)
}

type User struct {
	ID           int32
	Username     string
	Email        string
	PasswordHash string
	Role         Role
	CreatedTs    int64
}

type FindUser struct {
	ID       *int32
	Username *string
	Email    *string
}

type UpdateUser struct {
	ID           int32
	Email        *string
	PasswordHash *string
	Role         *Role
}
