package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/klass-lk/postboard/internal/model"
	"github.com/klass-lk/postboard/internal/policy"
	"github.com/klass-lk/postboard/internal/repository"
	"github.com/klass-lk/postboard/internal/validation"
)

var (
	ErrPostNotFound = errors.New("post not found")
	ErrForbidden    = policy.ErrUnauthorized
	// ErrPersistence means the store did not apply or could not serve the operation.
	ErrPersistence = errors.New("post could not be persisted")
)

// ValidationError carries every rule violation found in a field set.
type ValidationError struct {
	Errors validation.Errors
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Errors))
	for field := range e.Errors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fmt.Sprintf("invalid fields: %s", strings.Join(fields, ", "))
}

type PostService struct {
	repo      repository.PostRepository
	validator *validation.Validator
	policy    policy.PostPolicy
}

func NewPostService(repo repository.PostRepository) *PostService {
	return &PostService{
		repo:      repo,
		validator: validation.New(repo),
		policy:    policy.NewPostPolicy(),
	}
}

func (s *PostService) ListPosts(ctx context.Context) ([]model.Post, error) {
	posts, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, s.persistenceError("list", 0, err)
	}
	return posts, nil
}

// CreatePost validates input and stores a new post authored by actor.
func (s *PostService) CreatePost(ctx context.Context, actor model.User, input model.PostInput) (model.Post, error) {
	input = normalize(input)
	if err := s.validate(ctx, input, 0); err != nil {
		return model.Post{}, err
	}

	post := model.Post{
		Title:    input.Title,
		Content:  input.Content,
		AuthorID: actor.ID,
	}
	if err := s.repo.Create(ctx, &post); err != nil {
		return model.Post{}, s.writeError("create", 0, err)
	}
	return post, nil
}

func (s *PostService) GetPost(ctx context.Context, id int64) (model.Post, error) {
	post, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Post{}, ErrPostNotFound
	}
	if err != nil {
		return model.Post{}, s.persistenceError("show", id, err)
	}
	return post, nil
}

// UpdatePost replaces title and content of post id. Only the author may update, and the
// post is re-assigned to actor on every edit, so an update is also a transfer of ownership.
func (s *PostService) UpdatePost(ctx context.Context, actor model.User, id int64, input model.PostInput) (model.Post, error) {
	post, err := s.GetPost(ctx, id)
	if err != nil {
		return model.Post{}, err
	}
	if err := s.policy.Authorize(policy.AbilityUpdate, actor, post); err != nil {
		return model.Post{}, err
	}

	input = normalize(input)
	if err := s.validate(ctx, input, post.ID); err != nil {
		return model.Post{}, err
	}

	post.Title = input.Title
	post.Content = input.Content
	post.AuthorID = actor.ID
	if err := s.repo.Update(ctx, &post); err != nil {
		return model.Post{}, s.writeError("update", id, err)
	}
	return post, nil
}

func (s *PostService) DeletePost(ctx context.Context, actor model.User, id int64) error {
	post, err := s.GetPost(ctx, id)
	if err != nil {
		return err
	}
	if err := s.policy.Authorize(policy.AbilityDelete, actor, post); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return s.persistenceError("delete", id, err)
	}
	return nil
}

func (s *PostService) validate(ctx context.Context, input model.PostInput, excludeID int64) error {
	errs, err := s.validator.Validate(ctx, input, excludeID)
	if err != nil {
		return s.persistenceError("validate", excludeID, err)
	}
	if errs != nil {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// writeError reports a lost race on the title constraint as a validation failure.
func (s *PostService) writeError(op string, id int64, err error) error {
	if errors.Is(err, repository.ErrDuplicateTitle) {
		return &ValidationError{Errors: validation.Errors{"title": {validation.TitleTakenMessage}}}
	}
	return s.persistenceError(op, id, err)
}

func (s *PostService) persistenceError(op string, id int64, err error) error {
	log.Printf("post %s failed (id=%d): %v", op, id, err)
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}

func normalize(input model.PostInput) model.PostInput {
	return model.PostInput{
		Title:   strings.TrimSpace(input.Title),
		Content: strings.TrimSpace(input.Content),
	}
}
