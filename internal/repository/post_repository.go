package repository

import (
	"context"
	"errors"

	"github.com/klass-lk/postboard/internal/model"
)

var (
	ErrNotFound       = errors.New("repository: post not found")
	ErrDuplicateTitle = errors.New("repository: title already taken")
)

// PostRepository persists posts. Implementations assign ids and store timestamps on Create,
// refresh UpdatedAt on Update, and enforce title uniqueness atomically, reporting
// ErrDuplicateTitle when a write would break it.
type PostRepository interface {
	ListAll(ctx context.Context) ([]model.Post, error)
	FindByID(ctx context.Context, id int64) (model.Post, error)
	Create(ctx context.Context, post *model.Post) error
	Update(ctx context.Context, post *model.Post) error
	Delete(ctx context.Context, id int64) error
	// ExistsByTitle reports whether a post other than excludeID holds title.
	// Pass 0 to consider every post.
	ExistsByTitle(ctx context.Context, title string, excludeID int64) (bool, error)
}
