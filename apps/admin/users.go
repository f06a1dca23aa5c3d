package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/trezcool/capstone/core/user"
	exportsvc "github.com/trezcool/capstone/services/export"
)

func (cli *commandLine) createAdmin(name, email, pwd string) error {
	nu := user.NewUser{Name: name, Email: email, Password: pwd}
	if err := nu.Validate(cli.validate, cli.usrSvc); err != nil {
		return err
	}
	usr, err := cli.usrSvc.CreateAdmin(context.Background(), nu)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "admin %s created (%s)\n", usr.Email, usr.SourceID)
	return nil
}

func (cli *commandLine) resetPassword(email, pwd string) error {
	return cli.usrSvc.SetPassword(context.Background(), email, pwd)
}

func (cli *commandLine) importStudents(batchID, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "opening roster")
	}
	defer f.Close()

	rows, err := exportsvc.ReadStudentRows(f)
	if err != nil {
		return err
	}
	created, err := cli.usrSvc.ImportStudents(context.Background(), batchID, rows)
	fmt.Fprintf(cli.out, "%d of %d student(s) imported into %s\n", created, len(rows), batchID)
	return err
}
