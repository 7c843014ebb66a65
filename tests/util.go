package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/MC-tan/school-database-app/core/student"
	"github.com/MC-tan/school-database-app/core/user"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	if roles == nil {
		roles = []string{}
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

// CreateStudent stores a student straight into repo, skipping every validation.
func CreateStudent(
	t *testing.T,
	repo student.Repository,
	nationalID, firstName, lastName string,
	grade int,
	section string,
	siblings ...student.Sibling,
) student.Student {
	t.Helper()

	now := time.Now().UTC()
	for i := range siblings {
		if siblings[i].CreatedAt.IsZero() {
			siblings[i].CreatedAt = now
		}
	}
	s := student.Student{
		NationalID: nationalID,
		FirstName:  firstName,
		LastName:   lastName,
		Grade:      grade,
		Section:    null.NewString(section, section != ""),
		Siblings:   siblings,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s, err := repo.CreateStudent(context.Background(), s)
	if err != nil {
		t.Fatalf("createStudent() failed: %v", err)
	}
	return s
}
