package user

import "github.com/abduss/grimoire/internal/store"

// Column names of the core__users table.
const (
	FieldID             = "id"
	FieldUsername       = "username"
	FieldEmail          = "email"
	FieldName           = "name"
	FieldHashedPassword = "hashed_password"
	FieldIsActive       = "is_active"
	FieldIsSuperuser    = "is_superuser"
)

// User represents an application account.
type User struct {
	ID             int64   `json:"id"`
	Username       string  `json:"username"`
	Email          string  `json:"email"`
	Name           *string `json:"name"`
	PasswordDigest string  `json:"-"`
	IsActive       bool    `json:"is_active"`
	IsSuperuser    bool    `json:"is_superuser"`
}

// Schema maps User onto core__users.
var Schema = store.Schema[User]{
	Entity: "user",
	Table:  "core__users",
	Key:    FieldID,
	Fields: []store.Field[User]{
		store.Column(FieldID, func(u *User) *int64 { return &u.ID }),
		store.Column(FieldUsername, func(u *User) *string { return &u.Username }),
		store.Column(FieldEmail, func(u *User) *string { return &u.Email }),
		store.Column(FieldName, func(u *User) **string { return &u.Name }),
		store.Column(FieldHashedPassword, func(u *User) *string { return &u.PasswordDigest }),
		store.Column(FieldIsActive, func(u *User) *bool { return &u.IsActive }),
		store.Column(FieldIsSuperuser, func(u *User) *bool { return &u.IsSuperuser }),
	},
	Unique: []string{FieldUsername, FieldEmail},
	New: func() User {
		return User{IsActive: true}
	},
}

// CreateInput carries the fields accepted when creating a user. Password is
// plaintext and never reaches the entity store.
type CreateInput struct {
	Username    string
	Email       string
	Password    string
	Name        *string
	IsActive    *bool
	IsSuperuser *bool
}

// Values implements store.Input. The password is never included.
func (in CreateInput) Values() store.Values {
	values := store.Values{
		FieldUsername: in.Username,
		FieldEmail:    in.Email,
	}
	if in.Name != nil {
		values[FieldName] = *in.Name
	}
	if in.IsActive != nil {
		values[FieldIsActive] = *in.IsActive
	}
	if in.IsSuperuser != nil {
		values[FieldIsSuperuser] = *in.IsSuperuser
	}
	return values
}

// UpdateInput carries a partial update; nil fields are left untouched.
type UpdateInput struct {
	Username    *string
	Email       *string
	Name        *string
	Password    *string
	IsActive    *bool
	IsSuperuser *bool
}

// Values implements store.Input. The password is never included.
func (in UpdateInput) Values() store.Values {
	values := store.Values{}
	if in.Username != nil {
		values[FieldUsername] = *in.Username
	}
	if in.Email != nil {
		values[FieldEmail] = *in.Email
	}
	if in.Name != nil {
		values[FieldName] = *in.Name
	}
	if in.IsActive != nil {
		values[FieldIsActive] = *in.IsActive
	}
	if in.IsSuperuser != nil {
		values[FieldIsSuperuser] = *in.IsSuperuser
	}
	return values
}
