package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/parts-support/internal/domain"
)

const userColumns = `id, name, email, password_hash, roles, role_status, role_request, created_at, updated_at`

type userRepository struct {
	db querier
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (id, name, email, password_hash, roles, role_status, role_request, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	_, err := r.db.Exec(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Roles.String(),
		string(user.RoleStatus),
		roleRequestValue(user.RoleRequest),
		user.CreatedAt,
		user.UpdatedAt,
	)
	return err
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	const query = `
        UPDATE users SET name=$1, email=$2, password_hash=$3, roles=$4, role_status=$5, role_request=$6, updated_at=$7
        WHERE id=$8`
	cmd, err := r.db.Exec(ctx, query,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Roles.String(),
		string(user.RoleStatus),
		roleRequestValue(user.RoleRequest),
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if !isKey(id) {
		return nil, ErrNotFound
	}
	return r.fetchSingle(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.fetchSingle(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email)=LOWER($1)`, email)
}

func (r *userRepository) GetForUpdate(ctx context.Context, id string) (*domain.User, error) {
	if !isKey(id) {
		return nil, ErrNotFound
	}
	return r.fetchSingle(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1 FOR UPDATE`, id)
}

func (r *userRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, notFound(err)
	}
	return user, nil
}

func (r *userRepository) ListPendingRequests(ctx context.Context, limit, offset int) ([]domain.User, error) {
	limit, offset = NormalizeLimit(limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM users WHERE role_status=$1 AND role_request IS NOT NULL
        ORDER BY updated_at ASC LIMIT %d OFFSET %d`, userColumns, limit, offset)
	rows, err := r.db.Query(ctx, query, string(domain.ApprovalPending))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *user)
	}
	return result, rows.Err()
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		user        domain.User
		roles       string
		roleStatus  string
		roleRequest *string
	)
	if err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&roles,
		&roleStatus,
		&roleRequest,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	set, err := domain.ParseRoleSet(roles)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", user.ID, err)
	}
	user.Roles = set
	user.RoleStatus = domain.ApprovalStatus(roleStatus)
	if roleRequest != nil {
		role := domain.Role(*roleRequest)
		user.RoleRequest = &role
	}
	return &user, nil
}

func roleRequestValue(role *domain.Role) *string {
	if role == nil {
		return nil
	}
	value := string(*role)
	return &value
}
