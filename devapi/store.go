package devapi

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"blogdesk/domain"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

var (
	errNotFound  = errors.New("not found")
	errDuplicate = errors.New("already exists")
)

type user struct {
	ID        int64
	FirstName string
	LastName  string
	Email     string
	Password  string
	Role      domain.Role
}

// Store is the sqlite persistence of the development backend.
type Store struct {
	db *sql.DB
}

// OpenStore opens the database at path and runs the schema migrations.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("reading migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("preparing migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("preparing migrations: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func isUnique(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *Store) createUser(ctx context.Context, u user) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (first_name, last_name, email, password, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		u.FirstName, u.LastName, u.Email, u.Password, string(u.Role), time.Now().UTC())
	if isUnique(err) {
		return 0, errDuplicate
	}
	if err != nil {
		return 0, fmt.Errorf("inserting user: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) userByEmail(ctx context.Context, email string) (user, error) {
	var u user
	var role string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, first_name, last_name, email, password, role
		FROM users WHERE email = ?`, email).
		Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Password, &role)
	if errors.Is(err, sql.ErrNoRows) {
		return user{}, errNotFound
	}
	if err != nil {
		return user{}, fmt.Errorf("scanning user: %w", err)
	}
	u.Role = domain.Role(role)
	return u, nil
}

func (s *Store) categories(ctx context.Context) ([]domain.Category, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name FROM categories ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("querying categories: %w", err)
	}
	defer rows.Close()

	categories := []domain.Category{}
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (s *Store) createCategory(ctx context.Context, name string) (domain.Category, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO categories (name, created_at, updated_at) VALUES (?, ?, ?)", name, now, now)
	if isUnique(err) {
		return domain.Category{}, errDuplicate
	}
	if err != nil {
		return domain.Category{}, fmt.Errorf("inserting category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Category{}, err
	}
	return domain.Category{ID: id, Name: name}, nil
}

func (s *Store) updateCategory(ctx context.Context, id int64, name string) (domain.Category, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE categories SET name = ?, updated_at = ? WHERE id = ?", name, time.Now().UTC(), id)
	if isUnique(err) {
		return domain.Category{}, errDuplicate
	}
	if err != nil {
		return domain.Category{}, fmt.Errorf("updating category: %w", err)
	}
	if err := expectRow(res); err != nil {
		return domain.Category{}, err
	}
	return domain.Category{ID: id, Name: name}, nil
}

func (s *Store) deleteCategory(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM categories WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting category: %w", err)
	}
	return expectRow(res)
}

func (s *Store) categoryExists(ctx context.Context, id int64) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM categories WHERE id = ?", id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("counting categories: %w", err)
	}
	return n > 0, nil
}

const selectPost = `
	SELECT p.id, p.title, p.description, p.body, p.image_url, p.category_id, c.name,
	       p.is_private, p.created_at, p.updated_at
	FROM posts p LEFT JOIN categories c ON c.id = p.category_id`

type scanner interface {
	Scan(dest ...any) error
}

func scanPost(row scanner) (domain.Post, error) {
	var p domain.Post
	var image, category sql.NullString
	err := row.Scan(&p.ID, &p.Title, &p.Description, &p.Body, &image, &p.CategoryID, &category,
		&p.IsPrivate, &p.CreatedAt.Time, &p.UpdatedAt.Time)
	if err != nil {
		return domain.Post{}, err
	}
	if image.Valid {
		p.ImageURL = &image.String
	}
	if category.Valid {
		p.Category = &category.String
	}
	return p, nil
}

func (s *Store) posts(ctx context.Context) ([]domain.Post, error) {
	rows, err := s.db.QueryContext(ctx, selectPost+" ORDER BY p.updated_at DESC, p.id DESC")
	if err != nil {
		return nil, fmt.Errorf("querying posts: %w", err)
	}
	defer rows.Close()

	posts := []domain.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning post: %w", err)
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func (s *Store) post(ctx context.Context, id int64) (domain.Post, error) {
	p, err := scanPost(s.db.QueryRowContext(ctx, selectPost+" WHERE p.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Post{}, errNotFound
	}
	if err != nil {
		return domain.Post{}, fmt.Errorf("scanning post: %w", err)
	}
	return p, nil
}

func (s *Store) createPost(ctx context.Context, p domain.Post, author string) (domain.Post, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO posts (title, description, body, image_url, category_id, author_email, is_private, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Title, p.Description, p.Body, p.ImageURL, p.CategoryID, author, p.IsPrivate, now, now)
	if err != nil {
		return domain.Post{}, fmt.Errorf("inserting post: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Post{}, err
	}
	return s.post(ctx, id)
}

func (s *Store) updatePost(ctx context.Context, p domain.Post) (domain.Post, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE posts SET title = ?, description = ?, body = ?, image_url = ?, category_id = ?,
		       is_private = ?, updated_at = ?
		WHERE id = ?`,
		p.Title, p.Description, p.Body, p.ImageURL, p.CategoryID, p.IsPrivate, time.Now().UTC(), p.ID)
	if err != nil {
		return domain.Post{}, fmt.Errorf("updating post: %w", err)
	}
	if err := expectRow(res); err != nil {
		return domain.Post{}, err
	}
	return s.post(ctx, p.ID)
}

func (s *Store) deletePost(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM posts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting post: %w", err)
	}
	return expectRow(res)
}

func expectRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errNotFound
	}
	return nil
}
