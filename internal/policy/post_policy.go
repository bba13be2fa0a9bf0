package policy

import (
	"errors"

	"github.com/klass-lk/postboard/internal/model"
)

type Ability string

const (
	AbilityUpdate Ability = "update"
	AbilityDelete Ability = "delete"
)

var ErrUnauthorized = errors.New("this action is unauthorized")

// PostPolicy decides which users may change a post. Only the current author may update or delete it.
type PostPolicy struct{}

func NewPostPolicy() PostPolicy {
	return PostPolicy{}
}

func (PostPolicy) Update(user model.User, post model.Post) bool {
	return isOwner(user, post)
}

func (PostPolicy) Delete(user model.User, post model.Post) bool {
	return isOwner(user, post)
}

// Authorize returns ErrUnauthorized unless user holds ability on post.
func (p PostPolicy) Authorize(ability Ability, user model.User, post model.Post) error {
	var allowed bool
	switch ability {
	case AbilityUpdate:
		allowed = p.Update(user, post)
	case AbilityDelete:
		allowed = p.Delete(user, post)
	}
	if !allowed {
		return ErrUnauthorized
	}
	return nil
}

func isOwner(user model.User, post model.Post) bool {
	return user.ID != 0 && post.AuthorID == user.ID
}
