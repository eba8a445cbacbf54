package tests

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	echoapi "github.com/gavasques/aluno-adm-portal-crm-sub009/apps/api/echo"
	"github.com/gavasques/aluno-adm-portal-crm-sub009/core/crm"
	"github.com/gavasques/aluno-adm-portal-crm-sub009/core/user"
)

// moveFixture is one fresh server with a primed board: a pipeline with two
// active columns and one inactive one, a second pipeline, and a lead sitting
// in the first column.
type moveFixture struct {
	app        *echoapi.Server
	token      string
	pipeline   crm.Pipeline
	colNew     crm.Column
	colNext    crm.Column
	colClosed  crm.Column
	otherCol   crm.Column
	lead       crm.Lead
	movePath   string
	primeBoard func(t *testing.T)
}

func newMoveFixture(t *testing.T) *moveFixture {
	t.Helper()
	app := setup(t)
	admin := createUser(t, "Admin", "admin", "admin@test.test", "", []string{user.RoleAdmin}, true)

	f := &moveFixture{app: app, token: getToken(t, admin)}
	f.pipeline = createPipeline(t, "Sales")
	f.colNew = createColumn(t, f.pipeline.ID, "New", 1)
	f.colNext = createColumn(t, f.pipeline.ID, "Contacted", 2)
	f.colClosed = createColumn(t, f.pipeline.ID, "Archived", 3)
	if _, err := crmSvc.DeactivateColumn(testCtx(), f.colClosed.ID); err != nil {
		t.Fatalf("DeactivateColumn(): %v", err)
	}

	other := createPipeline(t, "Partnerships")
	f.otherCol = createColumn(t, other.ID, "New", 1)

	f.lead = createLead(t, f.pipeline.ID, f.colNew.ID, "Ana")
	f.movePath = "/v1/crm/leads/" + f.lead.ID + "/move"
	f.primeBoard = func(t *testing.T) {
		t.Helper()
		req, rec := newAuthRequest(http.MethodGet, "/v1/crm/board?pipeline_id="+f.pipeline.ID, f.token)
		f.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("priming board failed: %v %v", rec.Code, rec.Body.String())
		}
	}
	return f
}

func moveBody(t *testing.T, targetColumnID, pipelineID string) []byte {
	t.Helper()
	return marchallObj(t, echoapi.MoveLeadRequest{TargetColumnID: targetColumnID, PipelineID: pipelineID})
}

func decodeMoveResult(t *testing.T, rec *httptest.ResponseRecorder) crm.MoveResult {
	t.Helper()
	var res crm.MoveResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decoding MoveResult: %v; body %v", err, rec.Body.String())
	}
	return res
}

func Test_crmApi_moveLead(t *testing.T) {
	t.Run("auth required", func(t *testing.T) {
		f := newMoveFixture(t)
		tt := httpTest{
			method: http.MethodPost, path: f.movePath,
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		}
		req, rec := newRequest(tt.method, tt.path, moveBody(t, f.colNext.ID, f.pipeline.ID))
		f.app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("staff required", func(t *testing.T) {
		f := newMoveFixture(t)
		learner := createUser(t, "Student", "student", "student@test.test", "", []string{user.RoleStudent}, true)
		tt := httpTest{
			method: http.MethodPost, path: f.movePath, token: getToken(t, learner),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		}
		req, rec := newAuthRequest(tt.method, tt.path, tt.token, moveBody(t, f.colNext.ID, f.pipeline.ID))
		f.app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("target column required", func(t *testing.T) {
		f := newMoveFixture(t)
		tt := httpTest{
			method: http.MethodPost, path: f.movePath, token: f.token,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"target_column_id": "target_column_id is a required field"}),
		}
		req, rec := newAuthRequest(tt.method, tt.path, tt.token, moveBody(t, "", f.pipeline.ID))
		f.app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("board not primed", func(t *testing.T) {
		f := newMoveFixture(t)
		tt := httpTest{
			method: http.MethodPost, path: f.movePath, token: f.token,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "lead not found in the current board view"}),
		}
		req, rec := newAuthRequest(tt.method, tt.path, tt.token, moveBody(t, f.colNext.ID, f.pipeline.ID))
		f.app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("lead not in view", func(t *testing.T) {
		f := newMoveFixture(t)
		f.primeBoard(t)
		tt := httpTest{
			method: http.MethodPost, path: "/v1/crm/leads/" + "ghost" + "/move", token: f.token,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "lead not found in the current board view"}),
		}
		req, rec := newAuthRequest(tt.method, tt.path, tt.token, moveBody(t, f.colNext.ID, f.pipeline.ID))
		f.app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("inactive target", func(t *testing.T) {
		f := newMoveFixture(t)
		f.primeBoard(t)
		tt := httpTest{
			method: http.MethodPost, path: f.movePath, token: f.token,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "target column is inactive"}),
		}
		req, rec := newAuthRequest(tt.method, tt.path, tt.token, moveBody(t, f.colClosed.ID, f.pipeline.ID))
		f.app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("unknown target", func(t *testing.T) {
		f := newMoveFixture(t)
		f.primeBoard(t)
		tt := httpTest{
			method: http.MethodPost, path: f.movePath, token: f.token,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "target column not found"}),
		}
		req, rec := newAuthRequest(tt.method, tt.path, tt.token, moveBody(t, "nope", f.pipeline.ID))
		f.app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("cross-pipeline target", func(t *testing.T) {
		f := newMoveFixture(t)
		f.primeBoard(t)
		tt := httpTest{
			method: http.MethodPost, path: f.movePath, token: f.token,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: `column "New" belongs to a different pipeline`}),
		}
		req, rec := newAuthRequest(tt.method, tt.path, tt.token, moveBody(t, f.otherCol.ID, f.pipeline.ID))
		f.app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("no-op move", func(t *testing.T) {
		f := newMoveFixture(t)
		f.primeBoard(t)
		req, rec := newAuthRequest(http.MethodPost, f.movePath, f.token, moveBody(t, f.colNew.ID, f.pipeline.ID))
		f.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %v", rec.Code, http.StatusOK, rec.Body.String())
		}
		res := decodeMoveResult(t, rec)
		if !res.NoOp || res.State != crm.MoveConfirmed {
			t.Errorf("result = %+v, want confirmed no-op", res)
		}
	})

	t.Run("confirmed move", func(t *testing.T) {
		f := newMoveFixture(t)
		f.primeBoard(t)
		req, rec := newAuthRequest(http.MethodPost, f.movePath, f.token, moveBody(t, f.colNext.ID, f.pipeline.ID))
		f.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %v", rec.Code, http.StatusOK, rec.Body.String())
		}
		res := decodeMoveResult(t, rec)
		if res.State != crm.MoveConfirmed || res.NoOp {
			t.Errorf("result = %+v, want confirmed", res)
		}
		if res.Lead.ColumnID != f.colNext.ID {
			t.Errorf("lead column = %v, want %v", res.Lead.ColumnID, f.colNext.ID)
		}

		// the store carries the new column too
		stored, err := crmSvc.GetLead(testCtx(), f.lead.ID)
		if err != nil {
			t.Fatalf("GetLead(): %v", err)
		}
		if stored.ColumnID != f.colNext.ID {
			t.Errorf("stored column = %v, want %v", stored.ColumnID, f.colNext.ID)
		}
	})

	t.Run("one move in flight per board", func(t *testing.T) {
		f := newMoveFixture(t)
		f.primeBoard(t)

		req, rec := newAuthRequest(http.MethodPost, f.movePath, f.token, moveBody(t, f.colNext.ID, f.pipeline.ID))
		f.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("first move code = %v; body %v", rec.Code, rec.Body.String())
		}

		// the board is still settling; a second gesture is rejected
		tt := httpTest{
			method: http.MethodPost, path: f.movePath, token: f.token,
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: "a lead movement is already in progress"}),
		}
		req, rec = newAuthRequest(tt.method, tt.path, tt.token, moveBody(t, f.colNew.ID, f.pipeline.ID))
		f.app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})
}

func Test_crmApi_board(t *testing.T) {
	app := setup(t)
	admin := createUser(t, "Admin", "admin", "admin@test.test", "", []string{user.RoleAdmin}, true)
	token := getToken(t, admin)

	pipeline := createPipeline(t, "Sales")
	col := createColumn(t, pipeline.ID, "New", 1)
	ana := createLead(t, pipeline.ID, col.ID, "Ana")
	bob := createLead(t, pipeline.ID, col.ID, "Bob")

	other := createPipeline(t, "Partnerships")
	otherCol := createColumn(t, other.ID, "New", 1)
	createLead(t, other.ID, otherCol.ID, "Carl")

	tests := []httpTest{
		{
			name: "Auth required", path: "/v1/crm/board",
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "Filtered by pipeline", path: "/v1/crm/board?pipeline_id=" + pipeline.ID, token: token,
			wantCode: http.StatusOK, wantData: marchallList(t, bob, ana), // newest first
		},
		{
			name: "Filtered by search", path: fmt.Sprintf("/v1/crm/board?pipeline_id=%s&search=ana", pipeline.ID), token: token,
			wantCode: http.StatusOK, wantData: marchallList(t, ana),
		},
		{
			name: "Unknown pipeline is empty", path: "/v1/crm/board?pipeline_id=nope", token: token,
			wantCode: http.StatusOK, wantData: marchallList(t, []interface{}{}...),
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

func Test_crmApi_catalog(t *testing.T) {
	app := setup(t)
	admin := createUser(t, "Admin", "admin", "admin@test.test", "", []string{user.RoleAdmin}, true)
	token := getToken(t, admin)

	// create a pipeline over the API
	req, rec := newAuthRequest(http.MethodPost, "/v1/crm/pipelines", token, marchallObj(t, echoapi.NewPipelineRequest{Name: "Sales"}))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create pipeline code = %v; body %v", rec.Code, rec.Body.String())
	}
	var pipeline crm.Pipeline
	if err := json.Unmarshal(rec.Body.Bytes(), &pipeline); err != nil {
		t.Fatalf("decoding Pipeline: %v", err)
	}
	if pipeline.ID == "" || pipeline.Name != "Sales" {
		t.Errorf("pipeline = %+v", pipeline)
	}

	// then a column
	req, rec = newAuthRequest(http.MethodPost, "/v1/crm/columns", token,
		marchallObj(t, crm.NewColumn{Name: "New", PipelineID: pipeline.ID, SortOrder: 1}))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create column code = %v; body %v", rec.Code, rec.Body.String())
	}
	var col crm.Column
	if err := json.Unmarshal(rec.Body.Bytes(), &col); err != nil {
		t.Fatalf("decoding Column: %v", err)
	}
	if !col.IsActive {
		t.Errorf("column = %+v, want active", col)
	}

	// listings
	tt := httpTest{
		name: "Query pipelines", path: "/v1/crm/pipelines", token: token,
		wantCode: http.StatusOK, wantData: marchallList(t, pipeline),
	}
	req, rec = newAuthRequest(http.MethodGet, tt.path, tt.token)
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, tt, rec)

	tt = httpTest{
		name: "Query columns", path: "/v1/crm/pipelines/" + pipeline.ID + "/columns", token: token,
		wantCode: http.StatusOK, wantData: marchallList(t, col),
	}
	req, rec = newAuthRequest(http.MethodGet, tt.path, tt.token)
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, tt, rec)

	// deactivation flips the flag
	req, rec = newAuthRequest(http.MethodPost, "/v1/crm/columns/"+col.ID+"/deactivate", token)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("deactivate code = %v; body %v", rec.Code, rec.Body.String())
	}
	var deactivated crm.Column
	if err := json.Unmarshal(rec.Body.Bytes(), &deactivated); err != nil {
		t.Fatalf("decoding Column: %v", err)
	}
	if deactivated.IsActive {
		t.Errorf("column = %+v, want inactive", deactivated)
	}
}
