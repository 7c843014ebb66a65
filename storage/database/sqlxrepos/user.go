package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/MC-tan/school-database-app/core"
	"github.com/MC-tan/school-database-app/core/user"
	"github.com/MC-tan/school-database-app/storage/database"
)

var userColumns = []string{
	"id", "name", "username", "email", "is_active", "roles", "password_hash", "created_at", "updated_at", "last_login",
}

type userRow struct {
	ID           string         `db:"id"`
	Name         string         `db:"name"`
	Username     null.String    `db:"username"`
	Email        null.String    `db:"email"`
	IsActive     bool           `db:"is_active"`
	Roles        pq.StringArray `db:"roles"`
	PasswordHash []byte         `db:"password_hash"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastLogin    null.Time      `db:"last_login"`
}

func toUserRow(usr user.User) userRow {
	roles := usr.Roles
	if roles == nil {
		roles = []string{}
	}
	return userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Username:     null.NewString(usr.Username, usr.Username != ""),
		Email:        null.NewString(usr.Email, usr.Email != ""),
		IsActive:     usr.IsActive,
		Roles:        roles,
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    usr.LastLogin,
	}
}

func (r userRow) user() user.User {
	return user.User{
		ID:           r.ID,
		Name:         r.Name,
		Username:     r.Username.String,
		Email:        r.Email.String,
		IsActive:     r.IsActive,
		Roles:        r.Roles,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		LastLogin:    r.LastLogin,
	}
}

type userRepository struct {
	exec core.DBExecutor
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{exec: exec}
}

// trapNoRowsErr maps psql "no rows" err to user.ErrNotFound
func (repo userRepository) trapNoRowsErr(err error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	or := sq.Or{}
	if username != "" {
		or = append(or, sq.Eq{"username": username})
	}
	if email != "" {
		or = append(or, sq.Eq{"email": email})
	}
	if len(or) == 0 {
		return nil
	}
	q := psql.Select("username", "email").From("users").Where(or).Limit(1)
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		q = q.Where(sq.NotEq{"id": validIDs(ids)})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return errors.Wrap(err, "building uniqueness query")
	}
	var found struct {
		Username null.String `db:"username"`
		Email    null.String `db:"email"`
	}
	if err = repo.exec.GetContext(ctx, &found, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil
		}
		return errors.Wrap(err, "checking user uniqueness")
	}
	if username != "" && found.Username.String == username {
		return user.ErrUsernameExists
	}
	return user.ErrEmailExists
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	row := toUserRow(usr)
	query, args, err := psql.Insert("users").
		Columns(userColumns...).
		Values(row.ID, row.Name, row.Username, row.Email, row.IsActive, row.Roles, row.PasswordHash,
			row.CreatedAt, row.UpdatedAt, row.LastLogin).
		ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building insert user")
	}
	if _, err = repo.exec.ExecContext(ctx, query, args...); err != nil {
		switch {
		case database.IsUniqueViolation(err, "users_username_key"):
			return user.User{}, user.ErrUsernameExists
		case database.IsUniqueViolation(err, "users_email_key"):
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return row.user(), nil
}

func (repo userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	q := psql.Select(userColumns...).From("users")

	if filter != nil {
		// users with Name, Username or Email matching the search keyword
		if filter.Search != "" {
			val := ilike(filter.Search)
			q = q.Where(sq.Or{
				sq.ILike{"name": val},
				sq.ILike{"username": val},
				sq.ILike{"email": val},
			})
		}
		// users with any role that starts with any of the provided roles
		if len(filter.Roles) > 0 {
			or := make(sq.Or, 0, len(filter.Roles))
			for _, role := range filter.Roles {
				or = append(or, sq.Expr("EXISTS (SELECT 1 FROM UNNEST(roles) user_role WHERE user_role LIKE ?)", role+"%"))
			}
			q = q.Where(or)
		}
		if filter.IsActive != nil {
			q = q.Where(sq.Eq{"is_active": *filter.IsActive})
		}
		if !filter.CreatedFrom.IsZero() {
			q = q.Where(sq.GtOrEq{"created_at": filter.CreatedFrom.UTC()})
		}
		if !filter.CreatedTo.IsZero() {
			q = q.Where(sq.LtOrEq{"created_at": filter.CreatedTo.UTC()})
		}
	}
	q = q.OrderBy(orderBy(ordering)...)

	query, args, err := q.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building users query")
	}
	var rows []userRow
	if err = repo.exec.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.user())
	}
	return users, nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	q := psql.Select(userColumns...).From("users").Limit(1)
	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return user.User{}, user.ErrNotFound
		}
		q = q.Where(sq.Eq{"id": filter.ID})
	case filter.Username != "":
		q = q.Where(sq.Eq{"username": filter.Username})
	case filter.Email != "":
		q = q.Where(sq.Eq{"email": filter.Email})
	case filter.UsernameOrEmail != "":
		q = q.Where(sq.Or{sq.Eq{"username": filter.UsernameOrEmail}, sq.Eq{"email": filter.UsernameOrEmail}})
	default:
		return user.User{}, user.ErrNotFound
	}

	query, args, err := q.ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building user query")
	}
	var row userRow
	if err = repo.exec.GetContext(ctx, &row, query, args...); err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "finding user")
	}
	return row.user(), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	row := toUserRow(usr)
	query, args, err := psql.Update("users").
		SetMap(map[string]interface{}{
			"name":          row.Name,
			"username":      row.Username,
			"email":         row.Email,
			"is_active":     row.IsActive,
			"roles":         row.Roles,
			"password_hash": row.PasswordHash,
			"updated_at":    row.UpdatedAt,
			"last_login":    row.LastLogin,
		}).
		Where(sq.Eq{"id": row.ID}).
		ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building update user")
	}
	res, err := repo.exec.ExecContext(ctx, query, args...)
	if err != nil {
		switch {
		case database.IsUniqueViolation(err, "users_username_key"):
			return user.User{}, user.ErrUsernameExists
		case database.IsUniqueViolation(err, "users_email_key"):
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return row.user(), nil
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	ids = validIDs(ids)
	if len(ids) == 0 {
		return nil
	}
	query, args, err := psql.Delete("users").Where(sq.Eq{"id": ids}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building delete users")
	}
	if _, err = repo.exec.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return nil
}
