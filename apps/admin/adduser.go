package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/MC-tan/school-database-app/core"
	"github.com/MC-tan/school-database-app/core/user"
)

// addUser updates or creates an active user.User
func (cli *commandLine) addUser(name, uname, email, pwd string, isAdmin bool) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)
	name = core.CleanString(name)

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Username: uname})
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		usr = user.User{Username: uname, CreatedAt: cli.nowFunc().UTC()}
	}
	if name != "" {
		usr.Name = name
	} else if usr.Name == "" {
		usr.Name = uname
	}
	if email != "" {
		usr.Email = email
	}
	if isAdmin {
		usr.Roles = append([]string{}, user.AllRoles...)
	} else if len(usr.Roles) == 0 {
		usr.Roles = append([]string{}, user.TeacherRoles...)
	}
	usr.IsActive = true
	usr.UpdatedAt = cli.nowFunc().UTC()
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}

	if usr.ID == "" {
		_, err = cli.usrRepo.CreateUser(ctx, usr)
	} else {
		_, err = cli.usrRepo.UpdateUser(ctx, usr)
	}
	return err
}
