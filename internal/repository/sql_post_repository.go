package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/klass-lk/postboard/internal/model"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

const postColumns = "id, title, content, author_id, is_published, published_on, created_at, updated_at"

type SQLPostRepository struct {
	db        *sql.DB
	tableName string
}

func NewSQLPostRepository(db *sql.DB) *SQLPostRepository {
	var doc model.Post
	return &SQLPostRepository{
		db:        db,
		tableName: doc.GetTableName(),
	}
}

func (r *SQLPostRepository) CreateTable(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id BIGSERIAL PRIMARY KEY,
	title VARCHAR(255) NOT NULL UNIQUE,
	content TEXT NOT NULL,
	author_id BIGINT NOT NULL,
	is_published BOOLEAN NOT NULL DEFAULT FALSE,
	published_on TIMESTAMPTZ NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`, r.tableName)
	_, err := r.db.ExecContext(ctx, query)
	return err
}

func (r *SQLPostRepository) ListAll(ctx context.Context) ([]model.Post, error) {
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY id", postColumns, r.tableName)
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := []model.Post{}
	for rows.Next() {
		var p model.Post
		if err := scanPost(rows, &p); err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func (r *SQLPostRepository) FindByID(ctx context.Context, id int64) (model.Post, error) {
	var p model.Post
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", postColumns, r.tableName)
	err := scanPost(r.db.QueryRowContext(ctx, query, id), &p)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Post{}, ErrNotFound
	}
	return p, err
}

func (r *SQLPostRepository) Create(ctx context.Context, post *model.Post) error {
	query := fmt.Sprintf(`INSERT INTO %s (title, content, author_id, is_published, published_on)
VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at, updated_at`, r.tableName)
	err := r.db.QueryRowContext(ctx, query,
		post.Title, post.Content, post.AuthorID, post.IsPublished, post.PublishedOn,
	).Scan(&post.ID, &post.CreatedAt, &post.UpdatedAt)
	return translateSQLError(err)
}

func (r *SQLPostRepository) Update(ctx context.Context, post *model.Post) error {
	query := fmt.Sprintf(`UPDATE %s SET title = $1, content = $2, author_id = $3, is_published = $4,
published_on = $5, updated_at = NOW() WHERE id = $6 RETURNING created_at, updated_at`, r.tableName)
	err := r.db.QueryRowContext(ctx, query,
		post.Title, post.Content, post.AuthorID, post.IsPublished, post.PublishedOn, post.ID,
	).Scan(&post.CreatedAt, &post.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return translateSQLError(err)
}

func (r *SQLPostRepository) Delete(ctx context.Context, id int64) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", r.tableName)
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLPostRepository) ExistsByTitle(ctx context.Context, title string, excludeID int64) (bool, error) {
	var count int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE title = $1 AND id <> $2", r.tableName)
	err := r.db.QueryRowContext(ctx, query, title, excludeID).Scan(&count)
	return count > 0, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPost(row rowScanner, p *model.Post) error {
	var publishedOn sql.NullTime
	err := row.Scan(&p.ID, &p.Title, &p.Content, &p.AuthorID, &p.IsPublished, &publishedOn, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return err
	}
	if publishedOn.Valid {
		t := publishedOn.Time
		p.PublishedOn = &t
	}
	return nil
}

// translateSQLError recognises unique violations from both lib/pq and pgx.
func translateSQLError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrDuplicateTitle
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicateTitle
	}
	return err
}
