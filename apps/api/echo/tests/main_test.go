package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	echoapi "github.com/gavasques/aluno-adm-portal-crm-sub009/apps/api/echo"
	"github.com/gavasques/aluno-adm-portal-crm-sub009/core"
	"github.com/gavasques/aluno-adm-portal-crm-sub009/core/billing"
	"github.com/gavasques/aluno-adm-portal-crm-sub009/core/crm"
	"github.com/gavasques/aluno-adm-portal-crm-sub009/core/student"
	"github.com/gavasques/aluno-adm-portal-crm-sub009/core/user"
	emailsvc "github.com/gavasques/aluno-adm-portal-crm-sub009/services/email"
	dummydb "github.com/gavasques/aluno-adm-portal-crm-sub009/storage/database/dummy"
)

const webhookSecret = "whsec_test"

var (
	conf *core.Config

	usrRepo     user.Repository
	billingRepo billing.Repository
	crmSvc      *crm.Service

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
)

type nopLogger struct{}

func (nopLogger) Enable(bool)                  {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func setup(t *testing.T) *echoapi.Server {
	t.Helper()

	conf = &core.Config{
		TestMode:  true,
		AppName:   "aluno-adm-portal",
		SecretKey: "secret",
		Server: core.ServerConfig{
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 24 * time.Hour,
			PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		},
		// long delays keep the movement timers from firing mid-test
		CRM: core.CRMConfig{SettleDelay: time.Minute, InvalidateDelay: time.Minute},
		Billing: core.BillingConfig{
			StripeWebhookSecret: webhookSecret,
			SignatureTolerance:  5 * time.Minute,
		},
	}

	// set up DB & repos
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open(): %v", err)
	}
	usrRepo = dummydb.NewUserRepository(db)
	leadRepo := dummydb.NewLeadRepository(db)
	catalogRepo := dummydb.NewCatalogRepository(db)
	studentRepo := dummydb.NewStudentRepository(db)
	billingRepo = dummydb.NewBillingRepository(db)

	// set up services
	logger := nopLogger{}
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	validate, translator := core.NewValidator()
	user.RegisterValidators(validate, translator)

	usrSvc := user.NewService(conf, usrRepo, mailSvc)
	studentSvc := student.NewService(studentRepo, mailSvc, conf.AppName)
	boardCache := crm.NewBoardCache()
	crmSvc = crm.NewService(leadRepo, catalogRepo, boardCache, validate)
	mover := crm.NewMover(leadRepo, crmSvc, boardCache, crm.NewLoggerNotifier(logger), conf.CRM)
	billingSvc := billing.NewService(billingRepo, logger, conf.Billing)

	// set up server
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:       conf,
		Logger:     logger,
		UserSvc:    usrSvc,
		StudentSvc: studentSvc,
		CrmSvc:     crmSvc,
		Mover:      mover,
		BillingSvc: billingSvc,
		Validate:   validate,
		Translator: translator,
	})
}

func testCtx() context.Context { return context.Background() }

func createUser(t *testing.T, name, username, email, pwd string, roles []string, isActive bool) user.User {
	t.Helper()
	usr := user.User{
		ID:        uuid.NewString(),
		Name:      name,
		Username:  username,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("SetPassword(): %v", err)
		}
	}
	usr, err := usrRepo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser(): %v", err)
	}
	return usr
}

func createPipeline(t *testing.T, name string) crm.Pipeline {
	t.Helper()
	pipeline, err := crmSvc.CreatePipeline(context.Background(), name)
	if err != nil {
		t.Fatalf("CreatePipeline(): %v", err)
	}
	return pipeline
}

func createColumn(t *testing.T, pipelineID, name string, sortOrder int) crm.Column {
	t.Helper()
	col, err := crmSvc.CreateColumn(context.Background(), crm.NewColumn{
		Name:       name,
		PipelineID: pipelineID,
		SortOrder:  sortOrder,
	})
	if err != nil {
		t.Fatalf("CreateColumn(): %v", err)
	}
	return col
}

func createLead(t *testing.T, pipelineID, columnID, name string) crm.Lead {
	t.Helper()
	lead, err := crmSvc.CreateLead(context.Background(), crm.NewLead{
		Name:       name,
		PipelineID: pipelineID,
		ColumnID:   columnID,
	})
	if err != nil {
		t.Fatalf("CreateLead(): %v", err)
	}
	return lead
}

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
	extra    interface{}
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

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, usr user.User) string {
	t.Helper()
	claims := echoapi.GetUserClaims(conf, usr)
	token, err := echoapi.GenerateToken(conf, claims)
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList(): %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
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
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ObjectsAreEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
