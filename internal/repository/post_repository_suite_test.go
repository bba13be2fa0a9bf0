package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klass-lk/postboard/internal/model"
)

// runPostRepositorySuite exercises the PostRepository contract. newRepo must return an empty store.
func runPostRepositorySuite(t *testing.T, newRepo func(t *testing.T) PostRepository) {
	ctx := context.Background()

	t.Run("create assigns id and timestamps", func(t *testing.T) {
		repo := newRepo(t)
		post := &model.Post{Title: "First", Content: "Body", AuthorID: 7}
		require.NoError(t, repo.Create(ctx, post))

		assert.NotZero(t, post.ID)
		assert.False(t, post.CreatedAt.IsZero())

		found, err := repo.FindByID(ctx, post.ID)
		require.NoError(t, err)
		assert.Equal(t, "First", found.Title)
		assert.Equal(t, "Body", found.Content)
		assert.Equal(t, int64(7), found.AuthorID)
		assert.False(t, found.IsPublished)
		assert.Nil(t, found.PublishedOn)
	})

	t.Run("create keeps published fields", func(t *testing.T) {
		repo := newRepo(t)
		publishedOn := time.Date(2020, 5, 17, 10, 30, 0, 0, time.UTC)
		post := &model.Post{Title: "Seeded", Content: "Body", AuthorID: 1, IsPublished: true, PublishedOn: &publishedOn}
		require.NoError(t, repo.Create(ctx, post))

		found, err := repo.FindByID(ctx, post.ID)
		require.NoError(t, err)
		assert.True(t, found.IsPublished)
		require.NotNil(t, found.PublishedOn)
		assert.True(t, publishedOn.Equal(*found.PublishedOn))
	})

	t.Run("ids are unique and increasing", func(t *testing.T) {
		repo := newRepo(t)
		first := &model.Post{Title: "A", Content: "a", AuthorID: 1}
		second := &model.Post{Title: "B", Content: "b", AuthorID: 1}
		require.NoError(t, repo.Create(ctx, first))
		require.NoError(t, repo.Create(ctx, second))
		assert.Greater(t, second.ID, first.ID)
	})

	t.Run("duplicate title is rejected", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Create(ctx, &model.Post{Title: "Same", Content: "a", AuthorID: 1}))

		err := repo.Create(ctx, &model.Post{Title: "Same", Content: "b", AuthorID: 2})
		assert.ErrorIs(t, err, ErrDuplicateTitle)

		posts, err := repo.ListAll(ctx)
		require.NoError(t, err)
		assert.Len(t, posts, 1)
	})

	t.Run("list returns posts in id order", func(t *testing.T) {
		repo := newRepo(t)
		posts, err := repo.ListAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, posts)

		for i := 0; i < 3; i++ {
			require.NoError(t, repo.Create(ctx, &model.Post{Title: fmt.Sprintf("Post %d", i), Content: "c", AuthorID: 1}))
		}
		posts, err = repo.ListAll(ctx)
		require.NoError(t, err)
		require.Len(t, posts, 3)
		assert.Equal(t, "Post 0", posts[0].Title)
		assert.Equal(t, "Post 2", posts[2].Title)
	})

	t.Run("find unknown id", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.FindByID(ctx, 10000)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("update rewrites fields and releases old title", func(t *testing.T) {
		repo := newRepo(t)
		post := &model.Post{Title: "Old", Content: "a", AuthorID: 1}
		require.NoError(t, repo.Create(ctx, post))

		post.Title = "New"
		post.Content = "b"
		post.AuthorID = 2
		require.NoError(t, repo.Update(ctx, post))

		found, err := repo.FindByID(ctx, post.ID)
		require.NoError(t, err)
		assert.Equal(t, "New", found.Title)
		assert.Equal(t, "b", found.Content)
		assert.Equal(t, int64(2), found.AuthorID)

		exists, err := repo.ExistsByTitle(ctx, "Old", 0)
		require.NoError(t, err)
		assert.False(t, exists)
		require.NoError(t, repo.Create(ctx, &model.Post{Title: "Old", Content: "c", AuthorID: 1}))
	})

	t.Run("update keeping its own title", func(t *testing.T) {
		repo := newRepo(t)
		post := &model.Post{Title: "Keep", Content: "a", AuthorID: 1}
		require.NoError(t, repo.Create(ctx, post))

		post.Content = "changed"
		require.NoError(t, repo.Update(ctx, post))

		found, err := repo.FindByID(ctx, post.ID)
		require.NoError(t, err)
		assert.Equal(t, "changed", found.Content)
	})

	t.Run("update to a taken title", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Create(ctx, &model.Post{Title: "Taken", Content: "a", AuthorID: 1}))
		post := &model.Post{Title: "Mine", Content: "b", AuthorID: 1}
		require.NoError(t, repo.Create(ctx, post))

		post.Title = "Taken"
		assert.ErrorIs(t, repo.Update(ctx, post), ErrDuplicateTitle)

		found, err := repo.FindByID(ctx, post.ID)
		require.NoError(t, err)
		assert.Equal(t, "Mine", found.Title)
	})

	t.Run("update unknown id", func(t *testing.T) {
		repo := newRepo(t)
		err := repo.Update(ctx, &model.Post{ID: 10000, Title: "Ghost", Content: "a", AuthorID: 1})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("delete removes post and title", func(t *testing.T) {
		repo := newRepo(t)
		post := &model.Post{Title: "Gone", Content: "a", AuthorID: 1}
		require.NoError(t, repo.Create(ctx, post))

		require.NoError(t, repo.Delete(ctx, post.ID))

		_, err := repo.FindByID(ctx, post.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		exists, err := repo.ExistsByTitle(ctx, "Gone", 0)
		require.NoError(t, err)
		assert.False(t, exists)
		assert.ErrorIs(t, repo.Delete(ctx, post.ID), ErrNotFound)
	})

	t.Run("exists by title honours exclusion", func(t *testing.T) {
		repo := newRepo(t)
		post := &model.Post{Title: "Unique", Content: "a", AuthorID: 1}
		require.NoError(t, repo.Create(ctx, post))

		exists, err := repo.ExistsByTitle(ctx, "Unique", 0)
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = repo.ExistsByTitle(ctx, "Unique", post.ID)
		require.NoError(t, err)
		assert.False(t, exists)

		exists, err = repo.ExistsByTitle(ctx, "unknown", 0)
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("concurrent creates with one title", func(t *testing.T) {
		repo := newRepo(t)
		const workers = 8
		var wg sync.WaitGroup
		errs := make(chan error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs <- repo.Create(ctx, &model.Post{Title: "Race", Content: fmt.Sprint(i), AuthorID: int64(i + 1)})
			}(i)
		}
		wg.Wait()
		close(errs)

		succeeded := 0
		for err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.ErrorIs(t, err, ErrDuplicateTitle)
		}
		assert.Equal(t, 1, succeeded)
	})
}
