package exportsvc

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/capstone/core/user"
)

type testRow []interface{}

func (r testRow) Values() []interface{} { return r }

func TestWriteReadXLSX(t *testing.T) {
	var buf bytes.Buffer
	rows := []Row{
		testRow{"Ada", "ada@test.id", "UI", "ML"},
		testRow{"Bob", "bob@test.id", "ITB", user.PathFEBE},
	}
	err := WriteXLSX(&buf, "Roster", []string{"Name", "Email", "University", "Learning Path"}, rows)
	require.NoError(t, err, "WriteXLSX() failed")

	raw := buf.Bytes()
	got, err := ReadRows(bytes.NewReader(raw))
	require.NoError(t, err, "ReadRows() failed")
	require.Len(t, got, 3)
	assert.Equal(t, []string{"Name", "Email", "University", "Learning Path"}, got[0])

	students, err := ReadStudentRows(bytes.NewReader(raw))
	require.NoError(t, err, "ReadStudentRows() failed")
	assert.Equal(t, []user.StudentRow{
		{Name: "Ada", Email: "ada@test.id", University: "UI", LearningPath: "ML"},
		{Name: "Bob", Email: "bob@test.id", University: "ITB", LearningPath: user.PathFEBE},
	}, students)
}

func TestReadStudentRows_missingColumn(t *testing.T) {
	var buf bytes.Buffer
	err := WriteXLSX(&buf, "", []string{"Name", "University"}, []Row{testRow{"Ada", "UI"}})
	require.NoError(t, err, "WriteXLSX() failed")

	if _, err = ReadStudentRows(&buf); err == nil {
		t.Errorf("ReadStudentRows() error = nil, want missing column error")
	}
}
