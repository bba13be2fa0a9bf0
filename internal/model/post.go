package model

import (
	"time"
)

// Post is a blog article. CreatedAt and UpdatedAt are managed by the store and never serialized.
type Post struct {
	ID          int64      `json:"id" bson:"_id" dynamodbav:"id" db:"id"`
	Title       string     `json:"title" bson:"title" dynamodbav:"title" db:"title"`
	Content     string     `json:"content" bson:"content" dynamodbav:"content" db:"content"`
	AuthorID    int64      `json:"author_id" bson:"author_id" dynamodbav:"author_id" db:"author_id"`
	IsPublished bool       `json:"is_published" bson:"is_published" dynamodbav:"is_published" db:"is_published"`
	PublishedOn *time.Time `json:"published_on" bson:"published_on" dynamodbav:"published_on,omitempty" db:"published_on"`
	CreatedAt   time.Time  `json:"-" bson:"created_at" dynamodbav:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"-" bson:"updated_at" dynamodbav:"updated_at" db:"updated_at"`
}

func (p Post) GetTableName() string {
	return "posts"
}

// PostInput is the writable field set of a post.
type PostInput struct {
	Title   string `json:"title" validate:"required,max=255"`
	Content string `json:"content" validate:"required"`
}

// User is the acting caller. Users are owned by the identity provider; only the id is known here.
type User struct {
	ID     int64
	Scopes []string
}
