package authz

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupAuthzServiceTest(t *testing.T) *Service {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	svc, err := NewService(db)
	if err != nil {
		t.Fatalf("new authz service failed: %v", err)
	}
	return svc
}

func TestEnforceAccountWithRolePolicy(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.GrantRolePolicy("dispatcher", "/ops/orders/:id", "GET"); err != nil {
		t.Fatalf("grant role policy failed: %v", err)
	}
	if err := svc.SetAccountRoles(1, []string{"dispatcher"}); err != nil {
		t.Fatalf("set account roles failed: %v", err)
	}

	allow, err := svc.EnforceAccount(1, "/api/v1/ops/orders/42", "get")
	if err != nil {
		t.Fatalf("enforce allow failed: %v", err)
	}
	if !allow {
		t.Fatalf("expected allow=true")
	}

	allow, err = svc.EnforceAccount(1, "/api/v1/ops/orders/42", "POST")
	if err != nil {
		t.Fatalf("enforce deny failed: %v", err)
	}
	if allow {
		t.Fatalf("expected allow=false")
	}
}

func TestSetAccountRolesOverride(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.GrantRolePolicy("dispatcher", "/ops/orders", "GET"); err != nil {
		t.Fatalf("grant dispatcher policy failed: %v", err)
	}
	if err := svc.GrantRolePolicy("reviewer", "/ops/returns", "GET"); err != nil {
		t.Fatalf("grant reviewer policy failed: %v", err)
	}

	if err := svc.SetAccountRoles(2, []string{"dispatcher"}); err != nil {
		t.Fatalf("set first role failed: %v", err)
	}
	roles, err := svc.GetAccountRoles(2)
	if err != nil {
		t.Fatalf("get roles failed: %v", err)
	}
	if len(roles) != 1 || roles[0] != "role:dispatcher" {
		t.Fatalf("roles want [role:dispatcher], got=%v", roles)
	}

	if err := svc.SetAccountRoles(2, []string{"reviewer"}); err != nil {
		t.Fatalf("set second role failed: %v", err)
	}
	roles, err = svc.GetAccountRoles(2)
	if err != nil {
		t.Fatalf("get roles failed: %v", err)
	}
	if len(roles) != 1 || roles[0] != "role:reviewer" {
		t.Fatalf("roles want [role:reviewer], got=%v", roles)
	}

	allow, err := svc.EnforceAccount(2, "/ops/orders", "GET")
	if err != nil {
		t.Fatalf("enforce old role failed: %v", err)
	}
	if allow {
		t.Fatalf("expected old role permission removed")
	}

	allow, err = svc.EnforceAccount(2, "/ops/returns", "GET")
	if err != nil {
		t.Fatalf("enforce new role failed: %v", err)
	}
	if !allow {
		t.Fatalf("expected new role permission granted")
	}
}

func TestNormalizeObject(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "/api/v1/ops/orders/:id", want: "/ops/orders/:id"},
		{in: "/ops/orders/:id", want: "/ops/orders/:id"},
		{in: "ops/orders", want: "/ops/orders"},
		{in: "/api/v1", want: "/"},
		{in: "", want: "/"},
	}
	for _, item := range cases {
		got := NormalizeObject(item.in)
		if got != item.want {
			t.Fatalf("normalize object failed, in=%q want=%q got=%q", item.in, item.want, got)
		}
	}
}

func TestBootstrapBuiltinRoles(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap builtin roles failed: %v", err)
	}

	roles, err := svc.ListRoles()
	if err != nil {
		t.Fatalf("list roles failed: %v", err)
	}
	wantRoles := map[string]bool{
		"role:customer":         true,
		"role:delivery_partner": true,
		"role:manufacturer":     true,
		"role:admin":            true,
	}
	for _, role := range roles {
		delete(wantRoles, role)
	}
	if len(wantRoles) != 0 {
		t.Fatalf("builtin roles missing: %v", wantRoles)
	}

	if err := svc.SetAccountRoles(3, []string{"delivery_partner"}); err != nil {
		t.Fatalf("set account roles failed: %v", err)
	}

	allow, err := svc.EnforceAccount(3, "/ops/orders/7/deliver", "POST")
	if err != nil {
		t.Fatalf("enforce deliver failed: %v", err)
	}
	if !allow {
		t.Fatalf("expected delivery_partner allowed to deliver")
	}

	allow, err = svc.EnforceAccount(3, "/ops/refunds/7/approve", "POST")
	if err != nil {
		t.Fatalf("enforce refund approve failed: %v", err)
	}
	if allow {
		t.Fatalf("expected delivery_partner denied refund approval")
	}

	if err := svc.SetAccountRoles(4, []string{"customer"}); err != nil {
		t.Fatalf("set customer roles failed: %v", err)
	}
	allow, err = svc.EnforceAccount(4, "/orders/7/returns", "POST")
	if err != nil {
		t.Fatalf("enforce return request failed: %v", err)
	}
	if !allow {
		t.Fatalf("expected customer allowed to request return")
	}
}

func TestDeleteRoleProtectsBuiltinRoles(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap builtin roles failed: %v", err)
	}

	if err := svc.DeleteRole("delivery_partner"); !errors.Is(err, ErrRoleProtected) {
		t.Fatalf("delete builtin role want ErrRoleProtected, got=%v", err)
	}

	if _, err := svc.EnsureRole("dispatcher"); err != nil {
		t.Fatalf("ensure custom role failed: %v", err)
	}
	if err := svc.DeleteRole("dispatcher"); err != nil {
		t.Fatalf("delete custom role failed: %v", err)
	}
	roles, err := svc.ListRoles()
	if err != nil {
		t.Fatalf("list roles failed: %v", err)
	}
	for _, role := range roles {
		if role == "role:dispatcher" {
			t.Fatalf("expected custom role removed, still listed: %v", roles)
		}
	}
}
