package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/trezcool/capstone/core/group"
	exportsvc "github.com/trezcool/capstone/services/export"
)

func (cli *commandLine) autoAssign(batchID string, size int) error {
	report, err := cli.grpSvc.AutoAssign(context.Background(), batchID, "", size)
	for _, g := range report.Groups {
		fmt.Fprintf(cli.out, "%s (%s): %v\n", g.GroupName, g.UseCase, g.Members)
	}
	fmt.Fprintf(cli.out, "%d student(s) assigned to %d group(s), %d left over\n",
		report.AssignedCount, report.GroupsCreated, report.LeftOver)
	return err
}

func (cli *commandLine) exportGroups(batchID, path string) (err error) {
	rows, err := cli.grpSvc.Export(context.Background(), batchID)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating export file")
	}
	defer func() {
		if cErr := f.Close(); err == nil {
			err = cErr
		}
	}()

	xrows := make([]exportsvc.Row, 0, len(rows))
	for _, r := range rows {
		xrows = append(xrows, r)
	}
	if err = exportsvc.WriteXLSX(f, "Groups", group.ExportHeader, xrows); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%d row(s) written to %s\n", len(rows), path)
	return nil
}
