package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"github.com/go-playground/validator/v10"
	"golang.org/x/term"

	"github.com/trezcool/capstone/core/group"
	"github.com/trezcool/capstone/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db       *sql.DB
	usrSvc   user.Service
	grpSvc   group.Service
	validate *validator.Validate
	out      io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose command (up, down, status, ...) on the database")
	fmt.Fprintln(cli.out, "  createadmin -name NAME -email EMAIL - create an admin account")
	fmt.Fprintln(cli.out, "  resetpassword -email EMAIL - reset user's password")
	fmt.Fprintln(cli.out, "  importstudents -batch BATCH -file ROSTER.xlsx - register the students of a roster")
	fmt.Fprintln(cli.out, "  autoassign -batch BATCH [-size N] - place the unassigned students of a batch in new teams")
	fmt.Fprintln(cli.out, "  exportgroups [-batch BATCH] -out GROUPS.xlsx - write the groups and their members to a spreadsheet")
}

// promptPassword reads a password from the terminal without echoing it.
func (cli *commandLine) promptPassword() (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	createAdminCmd := flag.NewFlagSet("createadmin", flag.ContinueOnError)
	createAdminName := createAdminCmd.String("name", "", "The admin's name.")
	createAdminEmail := createAdminCmd.String("email", "", "The admin's email. The password will be prompted next.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The user's email. The password will be prompted next.")

	importCmd := flag.NewFlagSet("importstudents", flag.ContinueOnError)
	importBatch := importCmd.String("batch", "", "The batch the students join.")
	importFile := importCmd.String("file", "", "The roster spreadsheet. Its first row names the columns.")

	autoAssignCmd := flag.NewFlagSet("autoassign", flag.ContinueOnError)
	autoAssignBatch := autoAssignCmd.String("batch", "", "The batch to allocate.")
	autoAssignSize := autoAssignCmd.Int("size", 0, "The team size (default from configuration).")

	exportCmd := flag.NewFlagSet("exportgroups", flag.ContinueOnError)
	exportBatch := exportCmd.String("batch", "", "Only export the groups of this batch.")
	exportOut := exportCmd.String("out", "", "The spreadsheet to write.")

	for _, cmd := range []*flag.FlagSet{createAdminCmd, resetPasswordCmd, importCmd, autoAssignCmd, exportCmd} {
		cmd.SetOutput(cli.out)
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "createadmin":
		if err := createAdminCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *createAdminName == "" || *createAdminEmail == "" {
			createAdminCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			createAdminCmd.Usage()
			return errHelp
		}
		return cli.createAdmin(*createAdminName, *createAdminEmail, pwd)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordEmail == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordEmail, pwd)

	case "importstudents":
		if err := importCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *importBatch == "" || *importFile == "" {
			importCmd.Usage()
			return errHelp
		}
		return cli.importStudents(*importBatch, *importFile)

	case "autoassign":
		if err := autoAssignCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *autoAssignBatch == "" {
			autoAssignCmd.Usage()
			return errHelp
		}
		return cli.autoAssign(*autoAssignBatch, *autoAssignSize)

	case "exportgroups":
		if err := exportCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *exportOut == "" {
			exportCmd.Usage()
			return errHelp
		}
		return cli.exportGroups(*exportBatch, *exportOut)

	default:
		cli.printUsage()
		return errHelp
	}
}
