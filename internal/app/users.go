package app

import "github.com/tuannm99/novaorm/schema"

type User struct {
	ID       uint64 `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"-"`
}

var (
	Users        = schema.NewTable[User]("users")
	UserID       = schema.Field(Users, "id", func(u *User) *uint64 { return &u.ID }, schema.PrimaryKey())
	UserName     = schema.Field(Users, "name", func(u *User) *string { return &u.Name })
	UserEmail    = schema.Field(Users, "email", func(u *User) *string { return &u.Email })
	UserPassword = schema.Field(Users, "password", func(u *User) *string { return &u.Password })
)

// SelectUsers builds a projection over Users one field at a time.
type SelectUsers struct {
	p *schema.Projection[User]
}

func SelectedUsers() SelectUsers {
	return SelectUsers{p: schema.Selected[User]()}
}

func (s SelectUsers) ID() SelectUsers       { s.p.Add(UserID); return s }
func (s SelectUsers) Name() SelectUsers     { s.p.Add(UserName); return s }
func (s SelectUsers) Email() SelectUsers    { s.p.Add(UserEmail); return s }
func (s SelectUsers) Password() SelectUsers { s.p.Add(UserPassword); return s }

func (s SelectUsers) Projection() *schema.Projection[User] { return s.p }
