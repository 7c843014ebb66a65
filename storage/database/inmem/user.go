package inmemdb

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MC-tan/school-database-app/core"
	"github.com/MC-tan/school-database-app/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db}
}

func copyUser(usr user.User) user.User {
	if usr.Roles != nil {
		usr.Roles = append([]string{}, usr.Roles...)
	}
	if usr.PasswordHash != nil {
		usr.PasswordHash = append([]byte{}, usr.PasswordHash...)
	}
	return usr
}

func (repo *userRepository) CheckUsernameUniqueness(_ context.Context, username, email string, excludedUsers ...user.User) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	excluded := make(map[string]bool, len(excludedUsers))
	for _, u := range excludedUsers {
		excluded[u.ID] = true
	}
	for _, usr := range repo.db.users {
		if excluded[usr.ID] {
			continue
		}
		if username != "" && usr.Username == username {
			return user.ErrUsernameExists
		}
		if email != "" && usr.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if err := repo.CheckUsernameUniqueness(ctx, usr.Username, usr.Email); err != nil {
		return user.User{}, err
	}

	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	usr.ID = uuid.New().String()
	repo.db.users[usr.ID] = copyUser(usr)
	return copyUser(usr), nil
}

func (repo *userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	users := make([]user.User, 0, len(repo.db.users))
	for _, usr := range repo.db.users {
		if filter != nil && !matchUser(usr, filter) {
			continue
		}
		users = append(users, copyUser(usr))
	}

	sortBy(len(users), func(i, j int) { users[i], users[j] = users[j], users[i] }, ordering,
		func(field string, i, j int) int { return compareUsers(field, users[i], users[j]) },
		func(i, j int) int { return strings.Compare(users[i].ID, users[j].ID) },
	)
	return users, nil
}

func matchUser(usr user.User, filter *user.QueryFilter) bool {
	if filter.Search != "" && !(contains(usr.Name, filter.Search) || contains(usr.Username, filter.Search) || contains(usr.Email, filter.Search)) {
		return false
	}
	if len(filter.Roles) > 0 {
		var hasRole bool
		for _, role := range filter.Roles {
			if usr.RoleStartsWith(role) {
				hasRole = true
				break
			}
		}
		if !hasRole {
			return false
		}
	}
	if filter.IsActive != nil && usr.IsActive != *filter.IsActive {
		return false
	}
	if !filter.CreatedFrom.IsZero() && usr.CreatedAt.Before(filter.CreatedFrom) {
		return false
	}
	if !filter.CreatedTo.IsZero() && usr.CreatedAt.After(filter.CreatedTo) {
		return false
	}
	return true
}

func compareTimes(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

func compareUsers(field string, a, b user.User) int {
	switch field {
	case "name":
		return strings.Compare(a.Name, b.Name)
	case "username":
		return strings.Compare(a.Username, b.Username)
	case "email":
		return strings.Compare(a.Email, b.Email)
	case "is_active":
		return compareInts(boolInt(a.IsActive), boolInt(b.IsActive))
	case "created_at":
		return compareTimes(a.CreatedAt, b.CreatedAt)
	case "updated_at":
		return compareTimes(a.UpdatedAt, b.UpdatedAt)
	case "last_login":
		return compareTimes(a.LastLogin.Time, b.LastLogin.Time)
	}
	return 0
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if filter.ID != "" {
		if usr, ok := repo.db.users[filter.ID]; ok {
			return copyUser(usr), nil
		}
		return user.User{}, user.ErrNotFound
	}
	for _, usr := range repo.db.users {
		switch {
		case filter.Username != "":
			if usr.Username == filter.Username {
				return copyUser(usr), nil
			}
		case filter.Email != "":
			if usr.Email == filter.Email {
				return copyUser(usr), nil
			}
		case filter.UsernameOrEmail != "":
			if usr.Username == filter.UsernameOrEmail || usr.Email == filter.UsernameOrEmail {
				return copyUser(usr), nil
			}
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	if err := repo.CheckUsernameUniqueness(ctx, usr.Username, usr.Email, usr); err != nil {
		return user.User{}, err
	}

	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.users[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	repo.db.users[usr.ID] = copyUser(usr)
	return copyUser(usr), nil
}

func (repo *userRepository) DeleteUsersByID(_ context.Context, ids ...string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	for _, id := range ids {
		delete(repo.db.users, id)
	}
	return nil
}
