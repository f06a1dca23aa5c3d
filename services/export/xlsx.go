package exportsvc

import (
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/capstone/core/user"
)

const defaultSheet = "Sheet1"

// Row is anything that can be written as one spreadsheet row.
type Row interface {
	Values() []interface{}
}

// WriteXLSX writes a one sheet workbook: a bold header line followed by rows.
func WriteXLSX(w io.Writer, sheet string, header []string, rows []Row) error {
	f := excelize.NewFile()
	defer f.Close()

	if sheet != "" && sheet != defaultSheet {
		if err := f.SetSheetName(defaultSheet, sheet); err != nil {
			return errors.Wrap(err, "naming sheet")
		}
	} else {
		sheet = defaultSheet
	}

	hdr := make([]interface{}, 0, len(header))
	for _, h := range header {
		hdr = append(hdr, h)
	}
	if err := f.SetSheetRow(sheet, "A1", &hdr); err != nil {
		return errors.Wrap(err, "writing header")
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return errors.Wrap(err, "creating header style")
	}
	if err = f.SetRowStyle(sheet, 1, 1, bold); err != nil {
		return errors.Wrap(err, "styling header")
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := row.Values()
		if err = f.SetSheetRow(sheet, cell, &values); err != nil {
			return errors.Wrapf(err, "writing row %d", i+1)
		}
	}

	_, err = f.WriteTo(w)
	return errors.Wrap(err, "writing workbook")
}

// ReadRows returns the rows of the first sheet of a workbook.
func ReadRows(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "opening workbook")
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	return rows, errors.Wrap(err, "reading rows")
}

// ReadStudentRows reads a roster. The first row is a header naming the columns
// (name, email, university, learning_path, password), in any order and case.
func ReadStudentRows(r io.Reader) ([]user.StudentRow, error) {
	rows, err := ReadRows(r)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New("empty roster")
	}

	cols := make(map[string]int)
	for i, h := range rows[0] {
		cols[strings.ReplaceAll(strings.ToLower(strings.TrimSpace(h)), " ", "_")] = i
	}
	for _, required := range []string{"name", "email"} {
		if _, ok := cols[required]; !ok {
			return nil, errors.Errorf("missing %q column", required)
		}
	}

	get := func(row []string, col string) string {
		if i, ok := cols[col]; ok && i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}
	students := make([]user.StudentRow, 0, len(rows)-1)
	for _, row := range rows[1:] {
		sr := user.StudentRow{
			Name:         get(row, "name"),
			Email:        get(row, "email"),
			University:   get(row, "university"),
			LearningPath: get(row, "learning_path"),
			Password:     get(row, "password"),
		}
		if sr.Email == "" && sr.Name == "" {
			continue
		}
		students = append(students, sr)
	}
	return students, nil
}
