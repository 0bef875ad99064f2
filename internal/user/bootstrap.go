package user

import (
	"context"
	"fmt"
)

// EnsureSuperuser creates the given account as a superuser unless one
// already exists. The returned bool reports whether an account was created.
func EnsureSuperuser(ctx context.Context, users *Store, in CreateInput) (bool, error) {
	existing, err := users.GetSuperusers(ctx)
	if err != nil {
		return false, fmt.Errorf("list superusers: %w", err)
	}
	if len(existing) > 0 {
		return false, nil
	}

	taken, err := users.ExistsByField(ctx, FieldUsername, in.Username)
	if err != nil {
		return false, err
	}
	if taken {
		return false, fmt.Errorf("%w: %q", ErrUsernameTaken, in.Username)
	}

	yes := true
	in.IsSuperuser = &yes
	in.IsActive = &yes
	if _, err := users.Create(ctx, in); err != nil {
		return false, fmt.Errorf("create superuser: %w", err)
	}
	return true, nil
}
