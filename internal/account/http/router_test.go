package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/leafybank/backend/internal/account/domain"
	accountrepo "github.com/leafybank/backend/internal/account/repository"
	accountservice "github.com/leafybank/backend/internal/account/service"
	commonerrors "github.com/leafybank/backend/internal/common/errors"
	commonhttp "github.com/leafybank/backend/internal/common/http"
	"github.com/leafybank/backend/internal/common/logger"
	"github.com/leafybank/backend/internal/common/objectid"
	"github.com/leafybank/backend/internal/docstore"
	"github.com/leafybank/backend/internal/seed"
	userrepo "github.com/leafybank/backend/internal/user/repository"
	userservice "github.com/leafybank/backend/internal/user/service"
)

const (
	fridaID = "65a546ae4a8f64e8f88fb89e"
	graceID = "66fe219d625d93a100528224"
)

type testEnv struct {
	handler  http.Handler
	accounts *accountservice.AccountService
}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("", "accounts-http-test", "error")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func newLimiter(t *testing.T) *commonhttp.RouteRateLimiter {
	t.Helper()
	limiter := commonhttp.NewRouteRateLimiter()
	t.Cleanup(limiter.Stop)
	return limiter
}

func newTestEnv(t *testing.T, cfg Config) testEnv {
	t.Helper()
	log := newTestLogger(t)

	store := docstore.NewMemoryStore(accountrepo.Spec("accounts"), userrepo.Spec("users"))
	users := userrepo.NewDocRepository(store.Collection("users"))
	accounts := accountrepo.NewDocRepository(store.Collection("accounts"))
	if _, err := seed.Run(context.Background(), users, accounts, log); err != nil {
		t.Fatalf("seed: %v", err)
	}

	accountSvc := accountservice.NewAccountService(accountservice.Deps{
		Accounts: accounts,
		Users:    users,
		Log:      log,
	})
	userSvc := userservice.NewUserService(users, log)

	return testEnv{
		handler:  NewHandler(accountSvc, userSvc, cfg, newLimiter(t), log),
		accounts: accountSvc,
	}
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode: %v (%s)", err, rec.Body.String())
	}
	return v
}

func TestFetchAccounts(t *testing.T) {
	env := newTestEnv(t, Config{RequestTimeout: time.Second})

	rec := post(t, env.handler, "/fetch-accounts", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if got := decode[accountsResponse](t, rec); len(got.Accounts) != 3 {
		t.Fatalf("accounts = %d, want 3", len(got.Accounts))
	}

	rec = post(t, env.handler, "/fetch-active-accounts", "")
	got := decode[accountsResponse](t, rec)
	if len(got.Accounts) != 2 {
		t.Fatalf("active accounts = %d, want 2", len(got.Accounts))
	}
	for _, a := range got.Accounts {
		if a.AccountStatus != domain.StatusActive {
			t.Fatalf("unexpected status %s", a.AccountStatus)
		}
	}
}

func TestFindAccountByNumber(t *testing.T) {
	env := newTestEnv(t, Config{})

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{name: "found", path: "/find-account-by-number", body: `{"account_number":"1122334455"}`, wantStatus: http.StatusOK},
		{name: "closed is not active", path: "/find-active-account-by-number", body: `{"account_number":"1122334455"}`, wantStatus: http.StatusNotFound, wantCode: "ACCOUNT_NOT_FOUND"},
		{name: "active found", path: "/find-active-account-by-number", body: `{"account_number":"1234567890"}`, wantStatus: http.StatusOK},
		{name: "unknown", path: "/find-account-by-number", body: `{"account_number":"0000000000"}`, wantStatus: http.StatusNotFound, wantCode: "ACCOUNT_NOT_FOUND"},
		{name: "missing number", path: "/find-account-by-number", body: `{}`, wantStatus: http.StatusBadRequest, wantCode: "INVALID_PAYLOAD"},
		{name: "malformed json", path: "/find-account-by-number", body: `{"account_number":`, wantStatus: http.StatusBadRequest, wantCode: "INVALID_PAYLOAD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, env.handler, tt.path, tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantCode != "" {
				if env := decode[commonhttp.ErrorEnvelope](t, rec); env.Code != tt.wantCode {
					t.Fatalf("code = %s, want %s", env.Code, tt.wantCode)
				}
			}
		})
	}
}

func TestCreateAccount(t *testing.T) {
	env := newTestEnv(t, Config{})

	rec := post(t, env.handler, "/create-account",
		`{"UserName":"gracehop","UserId":"`+graceID+`","AccountNumber":"5550001111","AccountBalance":150.5,"AccountType":"Savings"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	created := decode[accountMessageResponse](t, rec)
	if created.AccountID == "" || created.Message != "Account created successfully" {
		t.Fatalf("response = %+v", created)
	}

	rec = post(t, env.handler, "/fetch-accounts-for-user", `{"user_identifier":"gracehop"}`)
	got := decode[accountsResponse](t, rec)
	if len(got.Accounts) != 1 || got.Accounts[0].ID.String() != created.AccountID {
		t.Fatalf("accounts for gracehop = %+v", got.Accounts)
	}
	if got.Accounts[0].AccountDescription != "Savings account for gracehop" {
		t.Fatalf("description = %q", got.Accounts[0].AccountDescription)
	}

	rec = post(t, env.handler, "/find-user", `{"user_identifier":"`+graceID+`"}`)
	user := decode[userResponse](t, rec)
	if len(user.User.LinkedAccounts) != 1 || user.User.LinkedAccounts[0].String() != created.AccountID {
		t.Fatalf("linked accounts = %v", user.User.LinkedAccounts)
	}
}

func TestCreateAccount_Rejections(t *testing.T) {
	env := newTestEnv(t, Config{})

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "duplicate number",
			body:       `{"UserName":"fridaklo","UserId":"` + fridaID + `","AccountNumber":"1234567890","AccountBalance":0,"AccountType":"Checking"}`,
			wantStatus: http.StatusConflict,
			wantCode:   "DUPLICATE_ACCOUNT_NUMBER",
		},
		{
			name:       "owner name and id disagree",
			body:       `{"UserName":"gracehop","UserId":"` + fridaID + `","AccountNumber":"5550002222","AccountBalance":10,"AccountType":"Checking"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_OWNER",
		},
		{
			name:       "balance over limit",
			body:       `{"UserName":"fridaklo","UserId":"` + fridaID + `","AccountNumber":"5550003333","AccountBalance":1000001,"AccountType":"Checking"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_PAYLOAD",
		},
		{
			name:       "negative balance",
			body:       `{"UserName":"fridaklo","UserId":"` + fridaID + `","AccountNumber":"5550004444","AccountBalance":-1,"AccountType":"Checking"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_PAYLOAD",
		},
		{
			name:       "unknown type",
			body:       `{"UserName":"fridaklo","UserId":"` + fridaID + `","AccountNumber":"5550005555","AccountBalance":1,"AccountType":"Brokerage"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_PAYLOAD",
		},
		{
			name:       "malformed owner id",
			body:       `{"UserName":"fridaklo","UserId":"frida","AccountNumber":"5550006666","AccountBalance":1,"AccountType":"Checking"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_PAYLOAD",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, env.handler, "/create-account", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if env := decode[commonhttp.ErrorEnvelope](t, rec); env.Code != tt.wantCode {
				t.Fatalf("code = %s, want %s", env.Code, tt.wantCode)
			}
		})
	}
}

func TestCreateAccount_ValidationDetails(t *testing.T) {
	env := newTestEnv(t, Config{})

	rec := post(t, env.handler, "/create-account", `{"UserName":"fridaklo","UserId":"`+fridaID+`","AccountNumber":"1"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	envelope := decode[commonhttp.ErrorEnvelope](t, rec)
	if envelope.Details["AccountBalance"] != "required" || envelope.Details["AccountType"] != "required" {
		t.Fatalf("details = %v", envelope.Details)
	}
}

func TestCloseAndDeleteAccount(t *testing.T) {
	env := newTestEnv(t, Config{})

	rec := post(t, env.handler, "/close-account", `{"account_id":"674dc33d4473ad1e1d4e02d0"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("close with balance: status = %d", rec.Code)
	}
	if got := decode[commonhttp.ErrorEnvelope](t, rec); got.Code != "PRECONDITION_FAILED" || got.Message != "account cannot be closed" {
		t.Fatalf("envelope = %+v", got)
	}

	rec = post(t, env.handler, "/create-account",
		`{"UserName":"adalove","UserId":"671ff0081ec726b417352702","AccountNumber":"7770001111","AccountBalance":0,"AccountType":"Checking"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status = %d: %s", rec.Code, rec.Body.String())
	}
	id := decode[accountMessageResponse](t, rec).AccountID

	rec = post(t, env.handler, "/close-account", `{"account_id":"`+id+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("close: status = %d: %s", rec.Code, rec.Body.String())
	}
	if got := decode[accountMessageResponse](t, rec); got.AccountID != id {
		t.Fatalf("close response = %+v", got)
	}

	rec = post(t, env.handler, "/close-account", `{"account_id":"`+id+`"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("second close: status = %d", rec.Code)
	}

	rec = post(t, env.handler, "/delete-account", `{"account_id":"`+id+`"}`)
	if got := decode[deleteAccountResponse](t, rec); rec.Code != http.StatusOK || !got.Deleted {
		t.Fatalf("delete: status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = post(t, env.handler, "/delete-account", `{"account_id":"`+id+`"}`)
	if got := decode[deleteAccountResponse](t, rec); rec.Code != http.StatusOK || got.Deleted {
		t.Fatalf("second delete: status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = post(t, env.handler, "/fetch-accounts-for-user", `{"user_identifier":"adalove"}`)
	if strings.TrimSpace(rec.Body.String()) != `{"accounts":[]}` {
		t.Fatalf("accounts for adalove = %s", rec.Body.String())
	}
}

func TestCloseAccount_InvalidID(t *testing.T) {
	env := newTestEnv(t, Config{})

	rec := post(t, env.handler, "/close-account", `{"account_id":"not-an-id"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decode[commonhttp.ErrorEnvelope](t, rec); got.Code != "INVALID_IDENTIFIER" {
		t.Fatalf("code = %s", got.Code)
	}
}

func TestUsers(t *testing.T) {
	env := newTestEnv(t, Config{})

	rec := post(t, env.handler, "/fetch-users", "")
	if got := decode[usersResponse](t, rec); len(got.Users) != 4 {
		t.Fatalf("users = %d, want 4", len(got.Users))
	}

	rec = post(t, env.handler, "/find-user", `{"user_identifier":"fridaklo"}`)
	if got := decode[userResponse](t, rec); got.User.ID.String() != fridaID || len(got.User.LinkedAccounts) != 3 {
		t.Fatalf("user = %+v", got.User)
	}

	rec = post(t, env.handler, "/find-user", `{"user_identifier":"nobody"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}

	rec = post(t, env.handler, "/fetch-active-accounts-for-user", `{"user_identifier":"`+fridaID+`"}`)
	if got := decode[accountsResponse](t, rec); len(got.Accounts) != 2 {
		t.Fatalf("active accounts for frida = %d, want 2", len(got.Accounts))
	}
}

func TestReconcileRoute(t *testing.T) {
	env := newTestEnv(t, Config{})

	rec := post(t, env.handler, "/reconcile-linked-accounts", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	report := decode[accountservice.ReconcileReport](t, rec)
	if report.UsersScanned != 4 || report.UsersRepaired != 0 {
		t.Fatalf("report = %+v", report)
	}
}

func TestMethodAndRouting(t *testing.T) {
	env := newTestEnv(t, Config{})

	req := httptest.NewRequest(http.MethodGet, "/fetch-accounts", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET on POST route: status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Server is running") {
		t.Fatalf("root: status = %d, body = %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown route: status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("health: status = %d", rec.Code)
	}
}

func TestMutationRoutesRequireToken(t *testing.T) {
	secret := strings.Repeat("k", 32)
	env := newTestEnv(t, Config{JWTSecret: secret})

	rec := post(t, env.handler, "/delete-account", `{"account_id":"674dc33d4473ad1e1d4e02d2"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("without token: status = %d", rec.Code)
	}

	rec = post(t, env.handler, "/fetch-accounts", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("reads stay open: status = %d", rec.Code)
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": fridaID,
		"usr": "fridaklo",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/delete-account", strings.NewReader(`{"account_id":"674dc33d4473ad1e1d4e02d2"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if got := decode[deleteAccountResponse](t, rec); rec.Code != http.StatusOK || !got.Deleted {
		t.Fatalf("with token: status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

type failingUsers struct {
	userservice.Service
}

func TestStoreUnavailable(t *testing.T) {
	log := newTestLogger(t)
	svc := &storeDownService{}
	handler := NewHandler(svc, failingUsers{}, Config{}, newLimiter(t), log)

	rec := post(t, handler, "/fetch-accounts", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decode[commonhttp.ErrorEnvelope](t, rec); got.Code != "STORE_UNAVAILABLE" {
		t.Fatalf("code = %s", got.Code)
	}

	rec = post(t, handler, "/create-account",
		`{"UserName":"fridaklo","UserId":"`+fridaID+`","AccountNumber":"8880001111","AccountBalance":1,"AccountType":"Checking"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create with failed link: status = %d", rec.Code)
	}
	if got := decode[accountMessageResponse](t, rec); got.AccountID != linkPendingID.String() {
		t.Fatalf("account id = %s", got.AccountID)
	}
}

var linkPendingID = objectid.MustParse("674dc33d4473ad1e1d4e02ff")

type storeDownService struct {
	accountservice.Service
}

func (storeDownService) CreateAccount(ctx context.Context, input accountservice.CreateAccountInput) (objectid.ID, error) {
	return linkPendingID, commonerrors.ErrStoreUnavailable.WithCause(errors.New("link failed"))
}

func (storeDownService) GetAccounts(ctx context.Context) ([]domain.Account, error) {
	return nil, commonerrors.ErrStoreUnavailable.WithCause(errors.New("connection refused"))
}
