package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/genius-academy-api/internal/models"
)

const accountColumns = `id, username, email, password_hash, first_name, last_name, role, gender, phone, address, picture, picture_thumb, active, last_login, created_at, updated_at`

// AccountRepository provides database access for accounts.
type AccountRepository struct {
	db *sqlx.DB
}

// NewAccountRepository creates a new instance of AccountRepository.
func NewAccountRepository(db *sqlx.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindByID returns an account by identifier.
func (r *AccountRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 LIMIT 1`
	var account models.Account
	if err := sqlx.GetContext(ctx, r.exec(exec), &account, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find account by id: %w", err)
	}
	return &account, nil
}

// FindByLogin returns the account whose username matches login exactly or whose email matches case-insensitively.
func (r *AccountRepository) FindByLogin(ctx context.Context, login string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE username = $1 OR LOWER(email) = LOWER($1) ORDER BY (username = $1) DESC LIMIT 1`
	var account models.Account
	if err := r.db.GetContext(ctx, &account, query, login); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find account by login: %w", err)
	}
	return &account, nil
}

// UsernameExists reports whether any account already uses username.
func (r *AccountRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM accounts WHERE username = $1)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, username); err != nil {
		return false, fmt.Errorf("check username: %w", err)
	}
	return exists, nil
}

// EmailExists reports whether another account uses email, ignoring case. excludeID may be empty.
func (r *AccountRepository) EmailExists(ctx context.Context, email, excludeID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM accounts WHERE LOWER(email) = LOWER($1) AND id::text <> $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, email, excludeID); err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return exists, nil
}

// LockUsername checks a candidate identifier inside its own short transaction,
// holding row locks on any matching account of the same role while it looks.
func (r *AccountRepository) LockUsername(ctx context.Context, role models.RoleKind, username string) (taken bool, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin username lock: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `SELECT id FROM accounts WHERE role = $1 AND username = $2 FOR UPDATE`
	var ids []string
	if err = tx.SelectContext(ctx, &ids, query, role, username); err != nil {
		return false, fmt.Errorf("lock username: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("commit username lock: %w", err)
	}
	return len(ids) > 0, nil
}

// List returns accounts based on filters with total count.
func (r *AccountRepository) List(ctx context.Context, filter models.AccountFilter) ([]models.Account, int, error) {
	baseQuery := `FROM accounts WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Role != nil {
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)+1))
		args = append(args, *filter.Role)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		n := len(args) + 1
		conditions = append(conditions, fmt.Sprintf("(LOWER(username) LIKE $%d OR LOWER(email) LIKE $%d OR LOWER(first_name) LIKE $%d OR LOWER(last_name) LIKE $%d)", n, n, n, n))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]bool{
		"username":   true,
		"email":      true,
		"first_name": true,
		"last_name":  true,
		"created_at": true,
		"updated_at": true,
	}
	sortBy := filter.SortBy
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
	}

	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", accountColumns, baseQuery, sortBy, sortOrder, pageSize, offset)

	var accounts []models.Account
	if err := r.db.SelectContext(ctx, &accounts, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list accounts: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count accounts: %w", err)
	}

	return accounts, total, nil
}

// ListByRole returns every account of role ordered by name, for exports.
func (r *AccountRepository) ListByRole(ctx context.Context, role models.RoleKind) ([]models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE role = $1 ORDER BY last_name, first_name, username`
	var accounts []models.Account
	if err := r.db.SelectContext(ctx, &accounts, query, role); err != nil {
		return nil, fmt.Errorf("list accounts by role: %w", err)
	}
	return accounts, nil
}

// Create inserts a new account.
func (r *AccountRepository) Create(ctx context.Context, exec sqlx.ExtContext, account *models.Account) error {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now

	const query = `INSERT INTO accounts (id, username, email, password_hash, first_name, last_name, role, gender, phone, address, active, created_at, updated_at)
VALUES (:id, :username, :email, :password_hash, :first_name, :last_name, :role, :gender, :phone, :address, :active, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, account); err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

// UpdateProfile writes the shared profile fields.
func (r *AccountRepository) UpdateProfile(ctx context.Context, exec sqlx.ExtContext, account *models.Account) error {
	account.UpdatedAt = time.Now().UTC()
	const query = `UPDATE accounts SET first_name = :first_name, last_name = :last_name, email = :email, gender = :gender, phone = :phone, address = :address, updated_at = :updated_at WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, account)
	if err != nil {
		return fmt.Errorf("update account profile: %w", err)
	}
	return expectAffected(res)
}

// UpdatePassword updates the stored password hash.
func (r *AccountRepository) UpdatePassword(ctx context.Context, exec sqlx.ExtContext, id, passwordHash string, updatedAt time.Time) error {
	const query = `UPDATE accounts SET password_hash = $2, updated_at = $3 WHERE id = $1`
	res, err := r.exec(exec).ExecContext(ctx, query, id, passwordHash, updatedAt)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return expectAffected(res)
}

// UpdateLastLogin updates the last_login timestamp.
func (r *AccountRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE accounts SET last_login = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// SetPicture stores picture paths and returns the previous ones.
func (r *AccountRepository) SetPicture(ctx context.Context, id string, picture, thumb *string) (prevPicture, prevThumb *string, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin picture update: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var prev struct {
		Picture *string `db:"picture"`
		Thumb   *string `db:"picture_thumb"`
	}
	if err = tx.GetContext(ctx, &prev, `SELECT picture, picture_thumb FROM accounts WHERE id = $1 FOR UPDATE`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("lock account picture: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `UPDATE accounts SET picture = $2, picture_thumb = $3, updated_at = $4 WHERE id = $1`, id, picture, thumb, time.Now().UTC()); err != nil {
		return nil, nil, fmt.Errorf("update account picture: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit account picture: %w", err)
	}
	return prev.Picture, prev.Thumb, nil
}

// Delete removes the account; profile rows go with it through ON DELETE CASCADE.
func (r *AccountRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	res, err := r.exec(exec).ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return expectAffected(res)
}

// CountByRole returns the number of accounts per role.
func (r *AccountRepository) CountByRole(ctx context.Context) (map[models.RoleKind]int, error) {
	var rows []struct {
		Role  models.RoleKind `db:"role"`
		Count int             `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &rows, `SELECT role, COUNT(*) AS count FROM accounts GROUP BY role`); err != nil {
		return nil, fmt.Errorf("count accounts by role: %w", err)
	}
	counts := make(map[models.RoleKind]int, len(rows))
	for _, row := range rows {
		counts[row.Role] = row.Count
	}
	return counts, nil
}

// CountStudentsByGender returns male and female student counts.
func (r *AccountRepository) CountStudentsByGender(ctx context.Context) (male, female int, err error) {
	const query = `SELECT
COUNT(*) FILTER (WHERE gender = 'M') AS male,
COUNT(*) FILTER (WHERE gender = 'F') AS female
FROM accounts WHERE role = 'STUDENT'`
	var row struct {
		Male   int `db:"male"`
		Female int `db:"female"`
	}
	if err := r.db.GetContext(ctx, &row, query); err != nil {
		return 0, 0, fmt.Errorf("count students by gender: %w", err)
	}
	return row.Male, row.Female, nil
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
