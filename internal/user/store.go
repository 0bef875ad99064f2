package user

import (
	"context"
	"fmt"

	"github.com/abduss/grimoire/internal/store"
)

// PasswordHasher turns plaintext passwords into digests and checks them.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, digest string) bool
}

// Store specializes the entity store for users. It exposes no hard delete;
// removing a user means deactivating it.
type Store struct {
	entities *store.Store[User]
	hasher   PasswordHasher
}

// NewStore wraps an entity store of users.
func NewStore(entities *store.Store[User], hasher PasswordHasher) *Store {
	return &Store{entities: entities, hasher: hasher}
}

// Create hashes the password and persists the user.
func (s *Store) Create(ctx context.Context, in CreateInput) (User, error) {
	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	values := in.Values()
	values[FieldHashedPassword] = digest
	return s.entities.Create(ctx, values)
}

// Get returns the user with the given id.
func (s *Store) Get(ctx context.Context, id int64) (User, bool, error) {
	return s.entities.Get(ctx, id)
}

// GetByEmail returns the user registered with email.
func (s *Store) GetByEmail(ctx context.Context, email string) (User, bool, error) {
	return s.entities.GetByField(ctx, FieldEmail, email)
}

// GetByUsername returns the user registered with username.
func (s *Store) GetByUsername(ctx context.Context, username string) (User, bool, error) {
	return s.entities.GetByField(ctx, FieldUsername, username)
}

// GetActiveUsers lists active users.
func (s *Store) GetActiveUsers(ctx context.Context, skip, limit int) ([]User, error) {
	return s.entities.GetMulti(ctx, store.ListOptions{
		Skip:    skip,
		Limit:   limit,
		Filters: store.Filters{FieldIsActive: true},
	})
}

// GetSuperusers lists superusers.
func (s *Store) GetSuperusers(ctx context.Context) ([]User, error) {
	return s.entities.GetMulti(ctx, store.ListOptions{
		Filters: store.Filters{FieldIsSuperuser: true},
	})
}

// List returns a page of users.
func (s *Store) List(ctx context.Context, opts store.ListOptions) ([]User, error) {
	return s.entities.GetMulti(ctx, opts)
}

// Count returns the number of users matching filters.
func (s *Store) Count(ctx context.Context, filters store.Filters) (int64, error) {
	return s.entities.Count(ctx, filters)
}

// Update merges in into the user. A new password replaces the digest wholesale.
func (s *Store) Update(ctx context.Context, id int64, in UpdateInput) (User, bool, error) {
	values := in.Values()
	if in.Password != nil {
		digest, err := s.hasher.Hash(*in.Password)
		if err != nil {
			return User{}, false, fmt.Errorf("hash password: %w", err)
		}
		values[FieldHashedPassword] = digest
	}
	return s.entities.Update(ctx, id, values)
}

// DeactivateUser soft deletes the user.
func (s *Store) DeactivateUser(ctx context.Context, id int64) (User, bool, error) {
	return s.entities.Update(ctx, id, store.Values{FieldIsActive: false})
}

// ActivateUser reverses DeactivateUser.
func (s *Store) ActivateUser(ctx context.Context, id int64) (User, bool, error) {
	return s.entities.Update(ctx, id, store.Values{FieldIsActive: true})
}

// Exists reports whether a user with id exists.
func (s *Store) Exists(ctx context.Context, id int64) (bool, error) {
	return s.entities.Exists(ctx, id)
}

// ExistsByField reports whether any user's field equals value.
func (s *Store) ExistsByField(ctx context.Context, field string, value any) (bool, error) {
	return s.entities.ExistsByField(ctx, field, value)
}

// Field exposes the column metadata used to parse query parameters.
func (s *Store) Field(name string) (store.Field[User], bool) {
	return s.entities.Field(name)
}

// VerifyPassword checks password against u's digest.
func (s *Store) VerifyPassword(u User, password string) bool {
	return s.hasher.Verify(password, u.PasswordDigest)
}
