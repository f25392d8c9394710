package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"pointsledger/internal/auth"
	"pointsledger/internal/config"
	"pointsledger/internal/logger"
	"pointsledger/internal/models"
	"pointsledger/internal/services"
	"pointsledger/internal/store"
	"pointsledger/internal/websocket"
)

type stubLedger struct {
	adjustFn        func(ctx context.Context, req services.AdjustRequest) (models.LedgerEntry, error)
	transferFn      func(ctx context.Context, req services.TransferRequest) (models.LedgerEntry, models.LedgerEntry, error)
	accountFn       func(ctx context.Context, accountID string) (models.Account, error)
	accountByUserFn func(ctx context.Context, userID string) (models.Account, error)
	entriesFn       func(ctx context.Context, accountID string, limit, offset int) ([]models.LedgerEntry, error)
	verifyFn        func(ctx context.Context, accountID string) (models.Reconciliation, error)
	reconcileAllFn  func(ctx context.Context) ([]models.Reconciliation, error)
}

func (s stubLedger) Adjust(ctx context.Context, req services.AdjustRequest) (models.LedgerEntry, error) {
	if s.adjustFn == nil {
		return models.LedgerEntry{}, nil
	}
	return s.adjustFn(ctx, req)
}

func (s stubLedger) Transfer(ctx context.Context, req services.TransferRequest) (models.LedgerEntry, models.LedgerEntry, error) {
	if s.transferFn == nil {
		return models.LedgerEntry{}, models.LedgerEntry{}, nil
	}
	return s.transferFn(ctx, req)
}

func (s stubLedger) Account(ctx context.Context, accountID string) (models.Account, error) {
	if s.accountFn == nil {
		return models.Account{}, services.ErrAccountNotFound
	}
	return s.accountFn(ctx, accountID)
}

func (s stubLedger) AccountByUser(ctx context.Context, userID string) (models.Account, error) {
	if s.accountByUserFn == nil {
		return models.Account{}, services.ErrAccountNotFound
	}
	return s.accountByUserFn(ctx, userID)
}

func (s stubLedger) Entries(ctx context.Context, accountID string, limit, offset int) ([]models.LedgerEntry, error) {
	if s.entriesFn == nil {
		return nil, nil
	}
	return s.entriesFn(ctx, accountID, limit, offset)
}

func (s stubLedger) Verify(ctx context.Context, accountID string) (models.Reconciliation, error) {
	if s.verifyFn == nil {
		return models.Reconciliation{AccountID: accountID}, nil
	}
	return s.verifyFn(ctx, accountID)
}

func (s stubLedger) ReconcileAll(ctx context.Context) ([]models.Reconciliation, error) {
	if s.reconcileAllFn == nil {
		return nil, nil
	}
	return s.reconcileAllFn(ctx)
}

type stubFlows struct {
	purchaseCourseFn    func(ctx context.Context, req services.PurchaseRequest) (*services.TransferResult, error)
	downloadFn          func(ctx context.Context, req services.PurchaseRequest) (*services.TransferResult, error)
	purchaseVIPFn       func(ctx context.Context, userID string, planID, price int64) (*models.LedgerEntry, error)
	postRewardFn        func(ctx context.Context, userID string, postID, reward int64) (models.LedgerEntry, error)
	acceptRewardFn      func(ctx context.Context, userID string, postID, reward int64) (models.LedgerEntry, error)
	refundRewardFn      func(ctx context.Context, userID string, postID, reward int64) (models.LedgerEntry, error)
	activityBonusFn     func(ctx context.Context, userID string, amount int64, description string) (models.LedgerEntry, error)
	adminAdjustFn       func(ctx context.Context, adminUserID, accountID string, amount int64, reason string, requestID *string) (models.LedgerEntry, error)
	registrationBonusFn func(ctx context.Context, userID string, grant int64) (models.Account, *models.LedgerEntry, error)
}

func (s stubFlows) PurchaseCourse(ctx context.Context, req services.PurchaseRequest) (*services.TransferResult, error) {
	if s.purchaseCourseFn == nil {
		return nil, nil
	}
	return s.purchaseCourseFn(ctx, req)
}

func (s stubFlows) DownloadGalleryItem(ctx context.Context, req services.PurchaseRequest) (*services.TransferResult, error) {
	if s.downloadFn == nil {
		return nil, nil
	}
	return s.downloadFn(ctx, req)
}

func (s stubFlows) PurchaseVIP(ctx context.Context, userID string, planID, price int64) (*models.LedgerEntry, error) {
	if s.purchaseVIPFn == nil {
		return nil, nil
	}
	return s.purchaseVIPFn(ctx, userID, planID, price)
}

func (s stubFlows) PostReward(ctx context.Context, userID string, postID, reward int64) (models.LedgerEntry, error) {
	if s.postRewardFn == nil {
		return models.LedgerEntry{}, nil
	}
	return s.postRewardFn(ctx, userID, postID, reward)
}

func (s stubFlows) AcceptReward(ctx context.Context, userID string, postID, reward int64) (models.LedgerEntry, error) {
	if s.acceptRewardFn == nil {
		return models.LedgerEntry{}, nil
	}
	return s.acceptRewardFn(ctx, userID, postID, reward)
}

func (s stubFlows) RefundReward(ctx context.Context, userID string, postID, reward int64) (models.LedgerEntry, error) {
	if s.refundRewardFn == nil {
		return models.LedgerEntry{}, nil
	}
	return s.refundRewardFn(ctx, userID, postID, reward)
}

func (s stubFlows) GrantActivityBonus(ctx context.Context, userID string, amount int64, description string) (models.LedgerEntry, error) {
	if s.activityBonusFn == nil {
		return models.LedgerEntry{}, nil
	}
	return s.activityBonusFn(ctx, userID, amount, description)
}

func (s stubFlows) AdminAdjust(ctx context.Context, adminUserID, accountID string, amount int64, reason string, requestID *string) (models.LedgerEntry, error) {
	if s.adminAdjustFn == nil {
		return models.LedgerEntry{}, nil
	}
	return s.adminAdjustFn(ctx, adminUserID, accountID, amount, reason, requestID)
}

func (s stubFlows) RegistrationBonus(ctx context.Context, userID string, grant int64) (models.Account, *models.LedgerEntry, error) {
	if s.registrationBonusFn == nil {
		return models.Account{UserID: userID, Balance: grant}, nil, nil
	}
	return s.registrationBonusFn(ctx, userID, grant)
}

type stubAdminStore struct {
	isAdminFn func(ctx context.Context, userID string) (bool, bool, error)
	hasRoleFn func(ctx context.Context, userID, role string) (bool, error)
}

func (s stubAdminStore) IsAdmin(ctx context.Context, userID string) (bool, bool, error) {
	if s.isAdminFn == nil {
		return false, false, nil
	}
	return s.isAdminFn(ctx, userID)
}

func (s stubAdminStore) HasRole(ctx context.Context, userID, role string) (bool, error) {
	if s.hasRoleFn == nil {
		return false, nil
	}
	return s.hasRoleFn(ctx, userID, role)
}

type stubAuditStore struct {
	listFn func(ctx context.Context, action string, limit, offset int) ([]store.AuditLog, error)
}

func (s stubAuditStore) List(ctx context.Context, action string, limit, offset int) ([]store.AuditLog, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, action, limit, offset)
}

// adminWithRoles reports userID as a plain admin holding exactly the given roles.
func adminWithRoles(userID string, roles ...string) stubAdminStore {
	return stubAdminStore{
		isAdminFn: func(ctx context.Context, id string) (bool, bool, error) {
			return id == userID, false, nil
		},
		hasRoleFn: func(ctx context.Context, id, role string) (bool, error) {
			if id != userID {
				return false, nil
			}
			for _, granted := range roles {
				if granted == role {
					return true, nil
				}
			}
			return false, nil
		},
	}
}

func newTestHandler(ledger Ledger, flows Flows, admin AdminStore, audit AuditStore) *Handler {
	cfg := config.Config{
		AppEnv:            "test",
		Port:              "0",
		JWTSecret:         "secret",
		AllowedOrigins:    "*",
		RegistrationGrant: 100,
	}
	return New(cfg, ledger, flows, admin, audit, websocket.NewHub(), logger.Discard())
}

// serveWithAuth sends a request through the full router as userID. An empty userID sends no token.
func serveWithAuth(t *testing.T, h *Handler, method, path string, body any, userID string) *httptest.ResponseRecorder {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			payload.WriteString(raw)
		} else if err := json.NewEncoder(&payload).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &payload)
	if userID != "" {
		token, err := auth.GenerateToken("secret", userID, time.Minute)
		if err != nil {
			t.Fatalf("failed to generate token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.Routes().ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
	return body
}

func stringPtr(value string) *string {
	return &value
}
