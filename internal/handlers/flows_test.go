package handlers

import (
	"context"
	"net/http"
	"testing"

	"pointsledger/internal/models"
	"pointsledger/internal/services"
	"pointsledger/internal/store"
)

func TestPurchaseCourse(t *testing.T) {
	var got services.PurchaseRequest
	handler := newTestHandler(stubLedger{}, stubFlows{
		purchaseCourseFn: func(_ context.Context, req services.PurchaseRequest) (*services.TransferResult, error) {
			got = req
			return &services.TransferResult{
				Debit:  models.LedgerEntry{ID: 1, Amount: -req.Price},
				Credit: models.LedgerEntry{ID: 2, Amount: req.Price},
			}, nil
		},
	}, stubAdminStore{}, stubAuditStore{})

	rr := serveWithAuth(t, handler, http.MethodPost, "/flows/purchase", map[string]any{
		"kind": "course", "item_id": 12, "author_user_id": "author-1", "price": 30, "request_id": "order-1",
	}, "buyer-1")
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if got.BuyerUserID != "buyer-1" || got.AuthorUserID != "author-1" || got.ItemID != 12 || got.Price != 30 {
		t.Fatalf("unexpected purchase request %+v", got)
	}
	if got.RequestID == nil || *got.RequestID != "order-1" {
		t.Fatalf("expected request id, got %v", got.RequestID)
	}
}

func TestPurchaseCourseNeedsAuthor(t *testing.T) {
	handler := newTestHandler(stubLedger{}, stubFlows{}, stubAdminStore{}, stubAuditStore{})
	rr := serveWithAuth(t, handler, http.MethodPost, "/flows/purchase", map[string]any{
		"kind": "course", "item_id": 12, "price": 30,
	}, "buyer-1")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestPurchaseFreeVIPReturnsNoContent(t *testing.T) {
	handler := newTestHandler(stubLedger{}, stubFlows{
		purchaseVIPFn: func(context.Context, string, int64, int64) (*models.LedgerEntry, error) {
			return nil, nil
		},
	}, stubAdminStore{}, stubAuditStore{})

	rr := serveWithAuth(t, handler, http.MethodPost, "/flows/purchase", map[string]any{
		"kind": "vip_plan", "item_id": 2, "price": 0,
	}, "buyer-1")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
}

func TestDownloadInsufficientBalance(t *testing.T) {
	handler := newTestHandler(stubLedger{}, stubFlows{
		downloadFn: func(context.Context, services.PurchaseRequest) (*services.TransferResult, error) {
			return nil, services.ErrInsufficientBalance
		},
	}, stubAdminStore{}, stubAuditStore{})

	rr := serveWithAuth(t, handler, http.MethodPost, "/flows/download", map[string]any{
		"item_id": 4, "author_user_id": "author-1", "price": 5,
	}, "buyer-1")
	if rr.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", rr.Code)
	}
}

func TestPostRewardChargesCaller(t *testing.T) {
	var gotUser string
	handler := newTestHandler(stubLedger{}, stubFlows{
		postRewardFn: func(_ context.Context, userID string, postID, reward int64) (models.LedgerEntry, error) {
			gotUser = userID
			return models.LedgerEntry{Amount: -reward, Category: models.CategoryReward}, nil
		},
	}, stubAdminStore{}, stubAuditStore{})

	rr := serveWithAuth(t, handler, http.MethodPost, "/flows/rewards", map[string]any{"post_id": 7, "reward": 20}, "poster-1")
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
	if gotUser != "poster-1" {
		t.Fatalf("expected caller to be charged, got %s", gotUser)
	}
}

func TestMintingFlowsRequireAdjustRole(t *testing.T) {
	paths := []string{"/flows/rewards/accept", "/flows/rewards/refund", "/flows/bonus"}
	body := map[string]any{"user_id": "user-1", "post_id": 7, "reward": 20, "amount": 5}

	handler := newTestHandler(stubLedger{}, stubFlows{}, stubAdminStore{}, stubAuditStore{})
	for _, path := range paths {
		rr := serveWithAuth(t, handler, http.MethodPost, path, body, "user-1")
		if rr.Code != http.StatusForbidden {
			t.Fatalf("%s: expected 403, got %d", path, rr.Code)
		}
	}

	handler = newTestHandler(stubLedger{}, stubFlows{}, adminWithRoles("svc-community", store.RoleAdjustPoints), stubAuditStore{})
	for _, path := range paths {
		rr := serveWithAuth(t, handler, http.MethodPost, path, body, "svc-community")
		if rr.Code != http.StatusCreated {
			t.Fatalf("%s: expected 201, got %d: %s", path, rr.Code, rr.Body.String())
		}
	}
}
