package fleet

type Role string

const (
	RoleParent Role = "parent"
	RoleDriver Role = "driver"
	RoleAdmin  Role = "admin"
)

type User struct {
	ID    string `json:"id" groups:"basic"`
	Name  string `json:"name" groups:"basic"`
	Email string `json:"email" groups:"detailed"`
	Phone string `json:"phone" groups:"detailed"`
	Role  Role   `json:"role" groups:"basic" validate:"oneof=parent driver admin"`
}

func (u *User) EntityID() string {
	return u.ID
}

func (u *User) Clone() Entity {
	cloned := *u
	return &cloned
}
