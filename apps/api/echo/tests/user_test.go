package tests

import (
	"encoding/json"
	"net/http"
	"testing"

	echoapi "github.com/gavasques/aluno-adm-portal-crm-sub009/apps/api/echo"
	"github.com/gavasques/aluno-adm-portal-crm-sub009/core/user"
)

func Test_userApi_login(t *testing.T) {
	app := setup(t)
	createUser(t, "Awe Some", "awesome", "awe@test.test", "LolC@t123", nil, true)
	createUser(t, "Naughty", "ndog", "ndog@test.test", "LolC@t123", nil, false)

	loginBody := func(uname, pwd string) []byte {
		return marchallObj(t, echoapi.LoginRequest{Username: uname, Password: pwd})
	}

	tests := []httpTest{
		{
			name: "Fields required", body: loginBody("", ""), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"username": "username is a required field",
				"password": "password is a required field",
			}),
		},
		{
			name: "Unknown user", body: loginBody("ghost", "LolC@t123"), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "Wrong password", body: loginBody("awesome", "nope"), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "Deactivated account", body: loginBody("ndog", "LolC@t123"), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/users/login", tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("Login by username", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/users/login", loginBody("awesome", "LolC@t123"))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; body %v", rec.Code, rec.Body.String())
		}
		var res echoapi.LoginResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
			t.Fatalf("decoding LoginResponse: %v", err)
		}
		if res.Token == "" {
			t.Error("token is empty")
		}
	})

	t.Run("Login by email", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/users/login", loginBody("awe@test.test", "LolC@t123"))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; body %v", rec.Code, rec.Body.String())
		}
	})
}

func Test_userApi_query(t *testing.T) {
	app := setup(t)
	usr := createUser(t, "User", "awe", "awe@test.test", "", nil, true)
	learner := createUser(t, "Hero", "hero", "hero@test.test", "", []string{user.RoleStudent}, true)
	admin := createUser(t, "Admin", "admin", "admin@test.test", "", []string{user.RoleAdmin}, true)
	adminToken := getToken(t, admin)

	tests := []httpTest{
		{
			name: "Auth required", path: "/v1/users",
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "Admin required", path: "/v1/users", token: getToken(t, learner),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Get all", path: "/v1/users", token: adminToken,
			wantCode: http.StatusOK, wantData: marchallList(t, admin, learner, usr), // newest first
		},
		{
			name: "search", path: "/v1/users?search=hero", token: adminToken,
			wantCode: http.StatusOK, wantData: marchallList(t, learner),
		},
		{
			name: "role filter", path: "/v1/users?role=" + user.RoleAdmin, token: adminToken,
			wantCode: http.StatusOK, wantData: marchallList(t, admin),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_retrieve(t *testing.T) {
	app := setup(t)
	usr := createUser(t, "User", "awe", "awe@test.test", "", nil, true)
	other := createUser(t, "Other", "other", "other@test.test", "", nil, true)
	admin := createUser(t, "Admin", "admin", "admin@test.test", "", []string{user.RoleAdmin}, true)

	tests := []httpTest{
		{
			name: "Own account", path: "/v1/users/" + usr.ID, token: getToken(t, usr),
			wantCode: http.StatusOK, wantData: marchallObj(t, usr),
		},
		{
			name: "Someone else's account is hidden", path: "/v1/users/" + other.ID, token: getToken(t, usr),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{
			name: "Admin sees anyone", path: "/v1/users/" + other.ID, token: getToken(t, admin),
			wantCode: http.StatusOK, wantData: marchallObj(t, other),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
