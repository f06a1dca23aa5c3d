package echoapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	. "github.com/trezcool/capstone/apps/api/echo"
	"github.com/trezcool/capstone/core/user"
	"github.com/trezcool/capstone/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	wantErr  string // error code of ErrorResponse
}

type fixture struct {
	*testutil.Stack
	app Server
}

func setup(t *testing.T) fixture {
	t.Helper()
	stack := testutil.NewStack()
	validate, translator := testutil.NewValidator()

	app := NewServer(ServerDeps{
		Conf:           stack.Conf,
		Logger:         stack.Logger,
		Validate:       validate,
		Translator:     translator,
		UserSvc:        stack.UsrSvc,
		ProgramSvc:     stack.ProgSvc,
		GroupSvc:       stack.GrpSvc,
		WorksheetSvc:   stack.WsSvc,
		DeliverableSvc: stack.DelivSvc,
		FeedbackSvc:    stack.FbSvc,
		DisableReqLogs: true,
	})
	return fixture{Stack: stack, app: app}
}

// do serves the request and returns the recorder.
func (f fixture) do(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	f.app.ServeHTTP(rec, req)
	return rec
}

func (f fixture) getToken(t *testing.T, usr user.User) string {
	token, err := GenerateToken(GetUserClaims(usr, f.Conf), f.Conf)
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func unmarshall(t *testing.T, rec *httptest.ResponseRecorder, obj interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), obj); err != nil {
		t.Fatalf("unmarshall(%s): %v", rec.Body.String(), err)
	}
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	return false, nil
}

// checkCodeAndData checks the status code, then the error code or the body when wanted.
func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantErr != "" {
		var resp ErrorResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Errorf("json.Unmarshal() failed: %v", err)
		}
		if resp.Code != tt.wantErr {
			t.Errorf("failed! error code = %q; wantErr %q", resp.Code, tt.wantErr)
		}
	}
	if tt.wantData != nil {
		ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
		if err != nil {
			t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
		}
		if !ok {
			t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
		}
	}
}

func runHTTPTests(t *testing.T, f fixture, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			rec := f.do(method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}
}
