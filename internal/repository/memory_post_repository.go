package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/klass-lk/postboard/internal/model"
)

type MemoryPostRepository struct {
	mu     sync.RWMutex
	posts  map[int64]model.Post
	titles map[string]int64
	nextID int64
	now    func() time.Time
}

func NewMemoryPostRepository() *MemoryPostRepository {
	return &MemoryPostRepository{
		posts:  make(map[int64]model.Post),
		titles: make(map[string]int64),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryPostRepository) ListAll(ctx context.Context) ([]model.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	posts := make([]model.Post, 0, len(r.posts))
	for _, p := range r.posts {
		posts = append(posts, p)
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].ID < posts[j].ID })
	return posts, nil
}

func (r *MemoryPostRepository) FindByID(ctx context.Context, id int64) (model.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.posts[id]
	if !ok {
		return model.Post{}, ErrNotFound
	}
	return p, nil
}

func (r *MemoryPostRepository) Create(ctx context.Context, post *model.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.titles[post.Title]; taken {
		return ErrDuplicateTitle
	}
	r.nextID++
	now := r.now()
	post.ID = r.nextID
	post.CreatedAt = now
	post.UpdatedAt = now
	r.posts[post.ID] = *post
	r.titles[post.Title] = post.ID
	return nil
}

func (r *MemoryPostRepository) Update(ctx context.Context, post *model.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.posts[post.ID]
	if !ok {
		return ErrNotFound
	}
	if owner, taken := r.titles[post.Title]; taken && owner != post.ID {
		return ErrDuplicateTitle
	}
	delete(r.titles, existing.Title)
	post.CreatedAt = existing.CreatedAt
	post.UpdatedAt = r.now()
	r.posts[post.ID] = *post
	r.titles[post.Title] = post.ID
	return nil
}

func (r *MemoryPostRepository) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.posts[id]
	if !ok {
		return ErrNotFound
	}
	delete(r.posts, id)
	delete(r.titles, existing.Title)
	return nil
}

func (r *MemoryPostRepository) ExistsByTitle(ctx context.Context, title string, excludeID int64) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	owner, taken := r.titles[title]
	return taken && owner != excludeID, nil
}
