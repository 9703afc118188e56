package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"elearn-api/internal/domain"
)

// CourseRepository define el contrato de lectura para cursos.
type CourseRepository interface {
	GetByID(ctx context.Context, id string) (domain.Course, error)
}

// PgCourseRepository implementa CourseRepository usando pgxpool.
type PgCourseRepository struct {
	pool *pgxpool.Pool
}

func NewPgCourseRepository(pool *pgxpool.Pool) *PgCourseRepository {
	return &PgCourseRepository{pool: pool}
}

func (r *PgCourseRepository) GetByID(ctx context.Context, id string) (domain.Course, error) {
	const query = `
		SELECT id, title, description, created_at
		FROM courses
		WHERE id = $1
	`
	var c domain.Course
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&c.ID,
		&c.Title,
		&c.Description,
		&c.CreatedAt,
	)
	if err != nil {
		return domain.Course{}, err
	}
	return c, nil
}
