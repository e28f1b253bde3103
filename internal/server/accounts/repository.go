package accounts

import "context"

// Repository is the narrow document-store contract the account service
// consumes: single-document lookups by field equality, whole-document writes,
// no transactions. Lookups that match nothing return common.ErrNotFound.
type Repository interface {
	FindByUserID(ctx context.Context, userid string) (*User, error)
	FindByValidationKey(ctx context.Context, key string) (*User, error)
	Insert(ctx context.Context, user *User) error
	// Update replaces the whole document matching userid and reports how
	// many documents matched.
	Update(ctx context.Context, userid string, user *User) (int64, error)
	Remove(ctx context.Context, userid string) (int64, error)
}
