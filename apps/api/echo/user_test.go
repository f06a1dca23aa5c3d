package echoapi_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/capstone/apps/api/echo"
	"github.com/trezcool/capstone/core"
	"github.com/trezcool/capstone/core/program"
	"github.com/trezcool/capstone/core/user"
	"github.com/trezcool/capstone/tests"
)

const batch = "asah-batch-1"

func Test_home(t *testing.T) {
	f := setup(t)
	rec := f.do(http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to Capstone API!", rec.Body.String())

	rec = f.do(http.MethodGet, "/api/unknown", "")
	checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "Not Found"})}, rec)
}

func Test_userApi_register(t *testing.T) {
	f := setup(t)
	testutil.CreateStudent(t, f.UsrRepo, "Taken", "taken@test.id", "", batch)

	body := func(name, email, pwd string) []byte {
		return marchallObj(t, map[string]string{"name": name, "email": email, "password": pwd})
	}
	path := "/api/auth/register"

	tests := []httpTest{
		{name: "missing fields", body: body("", "", ""), wantCode: http.StatusBadRequest, wantErr: "VALIDATION_FAILED"},
		{name: "invalid email", body: body("Rina", "rina", testutil.DefaultPassword), wantCode: http.StatusBadRequest, wantErr: "VALIDATION_FAILED"},
		{name: "numeric password", body: body("Rina", "rina@test.id", "12345678"), wantCode: http.StatusBadRequest, wantErr: "VALIDATION_FAILED"},
		{name: "email taken", body: body("Other", "TAKEN@test.id", testutil.DefaultPassword), wantCode: http.StatusConflict, wantErr: "EMAIL_ALREADY_EXISTS"},
		{name: "registered", body: body("Rina", "rina@test.id", testutil.DefaultPassword), wantCode: http.StatusCreated},
		{name: "registered twice", body: body("Rina", "rina@test.id", testutil.DefaultPassword), wantCode: http.StatusConflict, wantErr: "EMAIL_ALREADY_EXISTS"},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = path
	}
	runHTTPTests(t, f, tests)

	usr, err := f.UsrSvc.GetByEmail(context.Background(), "rina@test.id")
	require.NoError(t, err, "GetByEmail() failed")
	assert.Equal(t, user.RoleStudent, usr.Role)
	assert.Equal(t, "FUI0002", usr.SourceID)
	assert.NoError(t, usr.CheckPassword(testutil.DefaultPassword))
}

func Test_userApi_login(t *testing.T) {
	f := setup(t)
	usr := testutil.CreateStudent(t, f.UsrRepo, "Rina", "rina@test.id", user.PathML, batch)

	body := func(email, pwd string) []byte {
		return marchallObj(t, map[string]string{"email": email, "password": pwd})
	}
	tests := []httpTest{
		{name: "missing password", body: body("rina@test.id", ""), wantCode: http.StatusBadRequest, wantErr: "VALIDATION_FAILED"},
		{name: "unknown email", body: body("nobody@test.id", testutil.DefaultPassword), wantCode: http.StatusUnauthorized, wantErr: "INVALID_CREDENTIALS"},
		{name: "wrong password", body: body("rina@test.id", "Wrong!Pass-0"), wantCode: http.StatusUnauthorized, wantErr: "INVALID_CREDENTIALS"},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/api/auth/login"
	}
	runHTTPTests(t, f, tests)

	t.Run("logged in", func(t *testing.T) {
		rec := f.do(http.MethodPost, "/api/auth/login", "", body("RINA@test.id ", testutil.DefaultPassword))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp LoginResponse
		unmarshall(t, rec, &resp)
		require.NotEmpty(t, resp.Token)
		require.NotNil(t, resp.User)
		assert.Equal(t, usr.ID, resp.User.ID)

		// the token authenticates the next requests
		rec = f.do(http.MethodGet, "/api/user/profile", resp.Token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var profile user.User
		unmarshall(t, rec, &profile)
		assert.Equal(t, usr.Email, profile.Email)
		assert.Equal(t, usr.SourceID, profile.SourceID)
	})
}

func Test_userApi_refreshToken(t *testing.T) {
	f := setup(t)
	usr := testutil.CreateStudent(t, f.UsrRepo, "Rina", "rina@test.id", user.PathML, batch)

	expired, err := GenerateToken(GetUserClaims(usr, f.Conf, time.Now().Add(-8*24*time.Hour).Unix()), f.Conf)
	require.NoError(t, err, "GenerateToken() failed")

	path := "/api/auth/token-refresh"
	tests := []httpTest{
		{name: "auth required", method: http.MethodPost, path: path, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "refresh expired", method: http.MethodPost, path: path, token: expired,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "refresh has expired"}),
		},
	}
	runHTTPTests(t, f, tests)

	rec := f.do(http.MethodPost, path, f.getToken(t, usr))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp LoginResponse
	unmarshall(t, rec, &resp)
	assert.NotEmpty(t, resp.Token)
	assert.Nil(t, resp.User)
}

func Test_userApi_updateProfile(t *testing.T) {
	f := setup(t)
	usr := testutil.CreateStudent(t, f.UsrRepo, "Rina", "rina@test.id", "", batch)
	token := f.getToken(t, usr)
	path := "/api/user/profile"

	tests := []httpTest{
		{name: "auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "no changes", body: []byte(`{}`), token: token, wantCode: http.StatusBadRequest, wantErr: "NO_CHANGES"},
		{
			name: "invalid path", body: []byte(`{"learning_path": "Data Science"}`), token: token,
			wantCode: http.StatusBadRequest, wantErr: "INVALID_LEARNING_PATH",
		},
		{name: "choose path", body: []byte(`{"learning_path": "ml", "learning_group": "ML-12"}`), token: token, wantCode: http.StatusOK},
		{name: "same path", body: []byte(`{"learning_path": "ML"}`), token: token, wantCode: http.StatusOK},
		{
			name: "path is locked", body: []byte(`{"learning_path": "FEBE"}`), token: token,
			wantCode: http.StatusBadRequest, wantErr: "LEARNING_PATH_LOCKED",
		},
	}
	for i := range tests {
		tests[i].method = http.MethodPut
		tests[i].path = path
	}
	runHTTPTests(t, f, tests)

	rec := f.do(http.MethodGet, path, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var profile user.User
	unmarshall(t, rec, &profile)
	assert.Equal(t, user.PathML, profile.LearningPath)
	assert.Equal(t, "ML-12", profile.LearningGroup)
}

func Test_userApi_program(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	student := testutil.CreateStudent(t, f.UsrRepo, "Rina", "rina@test.id", user.PathML, batch)
	outsider := testutil.CreateStudent(t, f.UsrRepo, "Budi", "budi@test.id", user.PathML, "asah-batch-2")
	admin := testutil.CreateAdmin(t, f.UsrRepo, "Admin", "admin@test.id")

	uc := testutil.CreateUseCase(t, f.ProgRepo, "UC-01", "Smart Farming")
	doc2, err := f.ProgSvc.CreateDoc(ctx, program.NewDoc{URL: "https://docs.test/guide", Title: "Guide", OrderIdx: 2})
	require.NoError(t, err, "CreateDoc() failed")
	doc1, err := f.ProgSvc.CreateDoc(ctx, program.NewDoc{URL: "https://docs.test/rules", Title: "Rules", OrderIdx: 1})
	require.NoError(t, err, "CreateDoc() failed")
	period, err := f.ProgSvc.CreatePeriod(ctx, program.NewPeriod{
		BatchID:   batch,
		Title:     "Week 1",
		StartDate: core.MustParseDate("2026-02-02"),
		EndDate:   core.MustParseDate("2026-02-08"),
	})
	require.NoError(t, err, "CreatePeriod() failed")

	t.Run("use cases", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/api/user/use-cases", f.getToken(t, student))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got []program.UseCase
		unmarshall(t, rec, &got)
		require.Len(t, got, 1)
		assert.Equal(t, uc.ID, got[0].ID)
		assert.Equal(t, "UC-01", got[0].SourceID)
	})

	t.Run("docs ordered", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/api/user/docs", f.getToken(t, student))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got []program.Doc
		unmarshall(t, rec, &got)
		require.Len(t, got, 2)
		assert.Equal(t, []string{doc1.ID, doc2.ID}, []string{got[0].ID, got[1].ID})
	})

	tests := []struct {
		name    string
		token   string
		path    string
		wantIDs []string
	}{
		{"student batch", f.getToken(t, student), "/api/periods", []string{period.ID}},
		{"other batch", f.getToken(t, outsider), "/api/periods", []string{}},
		{"student cannot pick batch", f.getToken(t, outsider), "/api/periods?batch_id=" + batch, []string{}},
		{"admin picks batch", f.getToken(t, admin), "/api/periods?batch_id=" + batch, []string{period.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodGet, tt.path, tt.token)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var got []program.Period
			unmarshall(t, rec, &got)
			ids := make([]string, 0, len(got))
			for _, p := range got {
				ids = append(ids, p.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}
