package http

import (
	"net/http"
	"time"

	"github.com/leafybank/backend/internal/account/domain"
	accountservice "github.com/leafybank/backend/internal/account/service"
	commonerrors "github.com/leafybank/backend/internal/common/errors"
	commonhttp "github.com/leafybank/backend/internal/common/http"
	"github.com/leafybank/backend/internal/common/jwtverify"
	"github.com/leafybank/backend/internal/common/logger"
	userdomain "github.com/leafybank/backend/internal/user/domain"
	userservice "github.com/leafybank/backend/internal/user/service"
)

type Config struct {
	RequestTimeout time.Duration
	// JWTSecret enables bearer token checks on mutating routes when set.
	JWTSecret      string
	HealthCheck    commonhttp.HealthCheck
}

type Handler struct {
	accounts accountservice.Service
	users    userservice.Service
	errors   *commonhttp.ErrorHandler
	log      *logger.Logger
}

type accountNumberRequest struct {
	AccountNumber string `json:"account_number" validate:"required,max=34"`
}

type accountIDRequest struct {
	AccountID string `json:"account_id" validate:"required"`
}

type userIdentifierRequest struct {
	UserIdentifier string `json:"user_identifier" validate:"required"`
}

type createAccountRequest struct {
	UserName       string   `json:"UserName" validate:"required,max=32"`
	UserID         string   `json:"UserId" validate:"required,objectid"`
	AccountNumber  string   `json:"AccountNumber" validate:"required,max=34"`
	AccountBalance *float64 `json:"AccountBalance" validate:"required,gte=0,lte=1000000"`
	AccountType    string   `json:"AccountType" validate:"required,oneof=Checking Savings"`
}

type accountsResponse struct {
	Accounts []domain.Account `json:"accounts"`
}

type accountResponse struct {
	Account domain.Account `json:"account"`
}

type accountMessageResponse struct {
	Message   string `json:"message"`
	AccountID string `json:"account_id"`
}

type deleteAccountResponse struct {
	Deleted bool `json:"deleted"`
}

type usersResponse struct {
	Users []userdomain.User `json:"users"`
}

type userResponse struct {
	User userdomain.User `json:"user"`
}

func NewHandler(
	accounts accountservice.Service,
	users userservice.Service,
	cfg Config,
	limiter *commonhttp.RouteRateLimiter,
	log *logger.Logger,
) http.Handler {
	h := &Handler{
		accounts: accounts,
		users:    users,
		errors:   commonhttp.NewErrorHandler(log),
		log:      log,
	}

	post := func(fn http.HandlerFunc) http.HandlerFunc {
		return commonhttp.RequireMethod(http.MethodPost)(commonhttp.WithTimeout(cfg.RequestTimeout)(fn))
	}

	read := func(fn http.HandlerFunc) http.Handler {
		return limiter.General()(post(fn))
	}

	mutation := func(fn http.HandlerFunc) http.Handler {
		var next http.Handler = post(fn)
		if cfg.JWTSecret != "" {
			next = jwtverify.Middleware(cfg.JWTSecret, log)(next)
		}
		return limiter.Mutation()(next)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", h.root)
	mux.Handle("/health", commonhttp.HealthHandler(log, cfg.HealthCheck))

	mux.Handle("/fetch-accounts", read(h.fetchAccounts))
	mux.Handle("/fetch-active-accounts", read(h.fetchActiveAccounts))
	mux.Handle("/find-account-by-number", read(h.findAccountByNumber))
	mux.Handle("/find-active-account-by-number", read(h.findActiveAccountByNumber))
	mux.Handle("/fetch-accounts-for-user", read(h.fetchAccountsForUser))
	mux.Handle("/fetch-active-accounts-for-user", read(h.fetchActiveAccountsForUser))
	mux.Handle("/fetch-users", read(h.fetchUsers))
	mux.Handle("/find-user", read(h.findUser))

	mux.Handle("/create-account", mutation(h.createAccount))
	mux.Handle("/close-account", mutation(h.closeAccount))
	mux.Handle("/delete-account", mutation(h.deleteAccount))
	mux.Handle("/reconcile-linked-accounts", mutation(h.reconcileLinkedAccounts))

	return mux
}

func (h *Handler) root(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		commonhttp.WriteErrorEnvelope(w, http.StatusNotFound, commonhttp.CodeNotFound, "route not found", nil, commonhttp.TraceIDFromContext(r.Context()))
		return
	}
	commonhttp.WriteJSON(w, http.StatusOK, map[string]string{"message": "Server is running"})
}

func (h *Handler) fetchAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accounts.GetAccounts(r.Context())
	h.writeAccounts(w, r, "fetch_accounts", accounts, err)
}

func (h *Handler) fetchActiveAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accounts.GetActiveAccounts(r.Context())
	h.writeAccounts(w, r, "fetch_active_accounts", accounts, err)
}

func (h *Handler) fetchAccountsForUser(w http.ResponseWriter, r *http.Request) {
	var req userIdentifierRequest
	if err := commonhttp.DecodeAndValidate(r, &req); err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	accounts, err := h.accounts.GetAccountsForUser(r.Context(), domain.ParseOwnerRef(req.UserIdentifier))
	h.writeAccounts(w, r, "fetch_accounts_for_user", accounts, err)
}

func (h *Handler) fetchActiveAccountsForUser(w http.ResponseWriter, r *http.Request) {
	var req userIdentifierRequest
	if err := commonhttp.DecodeAndValidate(r, &req); err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	accounts, err := h.accounts.GetActiveAccountsForUser(r.Context(), domain.ParseOwnerRef(req.UserIdentifier))
	h.writeAccounts(w, r, "fetch_active_accounts_for_user", accounts, err)
}

func (h *Handler) writeAccounts(w http.ResponseWriter, r *http.Request, action string, accounts []domain.Account, err error) {
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	if accounts == nil {
		accounts = []domain.Account{}
	}

	h.log.WithFields(r.Context(), logger.Fields{
		"count":  len(accounts),
		"action": action,
	}).Info("accounts retrieved")
	commonhttp.WriteJSON(w, http.StatusOK, accountsResponse{Accounts: accounts})
}

func (h *Handler) findAccountByNumber(w http.ResponseWriter, r *http.Request) {
	h.findByNumber(w, r, false)
}

func (h *Handler) findActiveAccountByNumber(w http.ResponseWriter, r *http.Request) {
	h.findByNumber(w, r, true)
}

func (h *Handler) findByNumber(w http.ResponseWriter, r *http.Request, activeOnly bool) {
	var req accountNumberRequest
	if err := commonhttp.DecodeAndValidate(r, &req); err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	var (
		account domain.Account
		found   bool
		err     error
	)
	if activeOnly {
		account, found, err = h.accounts.GetActiveAccountByNumber(r.Context(), req.AccountNumber)
	} else {
		account, found, err = h.accounts.GetAccountByNumber(r.Context(), req.AccountNumber)
	}
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	if !found {
		h.errors.HandleError(w, r, commonerrors.ErrAccountNotFound)
		return
	}

	commonhttp.WriteJSON(w, http.StatusOK, accountResponse{Account: account})
}

func (h *Handler) createAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := commonhttp.DecodeAndValidate(r, &req); err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	ownerID, err := commonhttp.ParseObjectID(req.UserID)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	ctx := r.Context()
	id, err := h.accounts.CreateAccount(ctx, accountservice.CreateAccountInput{
		OwnerUsername:  req.UserName,
		OwnerUserID:    ownerID,
		AccountNumber:  req.AccountNumber,
		InitialBalance: *req.AccountBalance,
		AccountType:    domain.Type(req.AccountType),
	})
	if err != nil && id.IsZero() {
		h.errors.HandleError(w, r, err)
		return
	}
	if err != nil {
		// The account exists but the owner's index was not updated.
		h.log.WithFields(ctx, logger.Fields{
			"account_id": id.String(),
			"action":     "create_account_link_pending",
		}).Warnf("account created without owner link: %v", err)
	}

	commonhttp.WriteJSON(w, http.StatusCreated, accountMessageResponse{
		Message:   "Account created successfully",
		AccountID: id.String(),
	})
}

func (h *Handler) closeAccount(w http.ResponseWriter, r *http.Request) {
	var req accountIDRequest
	if err := commonhttp.DecodeAndValidate(r, &req); err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	id, err := commonhttp.ParseObjectID(req.AccountID)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	closed, err := h.accounts.CloseAccount(r.Context(), id)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	if !closed {
		h.errors.HandleError(w, r, commonerrors.ErrPreconditionFailed)
		return
	}

	commonhttp.WriteJSON(w, http.StatusOK, accountMessageResponse{
		Message:   "Account closed successfully",
		AccountID: id.String(),
	})
}

func (h *Handler) deleteAccount(w http.ResponseWriter, r *http.Request) {
	var req accountIDRequest
	if err := commonhttp.DecodeAndValidate(r, &req); err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	id, err := commonhttp.ParseObjectID(req.AccountID)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	deleted, err := h.accounts.DeleteAccount(r.Context(), id)
	if err != nil && !deleted {
		h.errors.HandleError(w, r, err)
		return
	}
	if err != nil {
		h.log.WithFields(r.Context(), logger.Fields{
			"account_id": id.String(),
			"action":     "delete_account_sweep_pending",
		}).Warnf("account deleted but linked accounts sweep failed: %v", err)
	}

	commonhttp.WriteJSON(w, http.StatusOK, deleteAccountResponse{Deleted: deleted})
}

func (h *Handler) reconcileLinkedAccounts(w http.ResponseWriter, r *http.Request) {
	report, err := h.accounts.Reconcile(r.Context())
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	commonhttp.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) fetchUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.GetUsers(r.Context())
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	if users == nil {
		users = []userdomain.User{}
	}

	h.log.WithFields(r.Context(), logger.Fields{
		"count":  len(users),
		"action": "fetch_users",
	}).Info("users retrieved")
	commonhttp.WriteJSON(w, http.StatusOK, usersResponse{Users: users})
}

func (h *Handler) findUser(w http.ResponseWriter, r *http.Request) {
	var req userIdentifierRequest
	if err := commonhttp.DecodeAndValidate(r, &req); err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	user, err := h.users.GetUser(r.Context(), userdomain.ParseRef(req.UserIdentifier))
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	commonhttp.WriteJSON(w, http.StatusOK, userResponse{User: user})
}
