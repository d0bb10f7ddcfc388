package middleware

import (
	"testing"

	tele "gopkg.in/telebot.v4"
)

// senderCtx stubs only the Sender accessor; the middleware must not touch
// anything else on the context.
type senderCtx struct {
	tele.Context
	user *tele.User
}

func (c senderCtx) Sender() *tele.User { return c.user }

func TestAdminOnlyAllowsAdmin(t *testing.T) {
	called := false
	h := AdminOnlyMiddleware(AdminOptions{AdminID: 42})(func(tele.Context) error {
		called = true
		return nil
	})

	if err := h(senderCtx{user: &tele.User{ID: 42}}); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if !called {
		t.Fatal("admin must reach the handler")
	}
}

func TestAdminOnlyRejectsOthers(t *testing.T) {
	rejected := false
	opts := AdminOptions{
		AdminID:  42,
		OnReject: func(tele.Context) error { rejected = true; return nil },
	}
	h := AdminOnlyMiddleware(opts)(func(tele.Context) error {
		t.Fatal("non-admin must not reach the handler")
		return nil
	})

	if err := h(senderCtx{user: &tele.User{ID: 7}}); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if !rejected {
		t.Fatal("expected OnReject for non-admin")
	}
}

func TestAdminOnlyRejectsMissingSender(t *testing.T) {
	h := AdminOnlyMiddleware(AdminOptions{AdminID: 42})(func(tele.Context) error {
		t.Fatal("sender-less update must not reach the handler")
		return nil
	})

	if err := h(senderCtx{user: nil}); err != nil {
		t.Fatalf("handler: %v", err)
	}
}

func TestAdminOnlyDisabledWithoutAdminID(t *testing.T) {
	called := false
	h := AdminOnlyMiddleware(AdminOptions{})(func(tele.Context) error {
		called = true
		return nil
	})

	if err := h(senderCtx{user: nil}); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if !called {
		t.Fatal("zero AdminID must disable the gate")
	}
}
