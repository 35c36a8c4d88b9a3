package authz

import "fmt"

// RoleSeed 预置角色定义
type RoleSeed struct {
	Role      string
	Inherits  []string
	Policies  []Policy
	Immutable bool
}

// BuiltinRoleSeeds 系统预置角色矩阵。
// 四类业务角色对应订单链路上的参与方，策略按路由前缀划分。
func BuiltinRoleSeeds() []RoleSeed {
	return []RoleSeed{
		{
			Role: "customer",
			Policies: []Policy{
				{Object: "/orders", Action: "*"},
				{Object: "/orders/:id", Action: "GET"},
				{Object: "/orders/:id/cancel", Action: "POST"},
				{Object: "/orders/:id/tracking", Action: "GET"},
				{Object: "/orders/:id/returns", Action: "POST"},
				{Object: "/returns", Action: "GET"},
				{Object: "/returns/:id", Action: "GET"},
				{Object: "/returns/:id/cancel", Action: "POST"},
				{Object: "/returns/:id/refund", Action: "GET"},
			},
			Immutable: true,
		},
		{
			Role: "delivery_partner",
			Policies: []Policy{
				{Object: "/ops/orders", Action: "GET"},
				{Object: "/ops/orders/:id", Action: "GET"},
				{Object: "/ops/orders/:id/dispatch", Action: "POST"},
				{Object: "/ops/orders/:id/near-location", Action: "POST"},
				{Object: "/ops/orders/:id/deliver", Action: "POST"},
				{Object: "/ops/returns", Action: "GET"},
				{Object: "/ops/returns/:id", Action: "GET"},
				{Object: "/ops/returns/:id/pickup", Action: "POST"},
				{Object: "/ops/returns/:id/pickup/near-location", Action: "POST"},
				{Object: "/ops/returns/:id/pickup/otp", Action: "POST"},
				{Object: "/ops/returns/:id/pickup/complete", Action: "POST"},
			},
			Immutable: true,
		},
		{
			Role: "manufacturer",
			Policies: []Policy{
				{Object: "/ops/orders", Action: "GET"},
				{Object: "/ops/orders/:id", Action: "GET"},
				{Object: "/ops/orders/:id/process", Action: "POST"},
				{Object: "/ops/orders/:id/dispatch", Action: "POST"},
				{Object: "/ops/returns", Action: "GET"},
				{Object: "/ops/returns/:id", Action: "GET"},
				{Object: "/ops/returns/:id/approve", Action: "POST"},
				{Object: "/ops/returns/:id/reject", Action: "POST"},
				{Object: "/ops/refunds", Action: "GET"},
				{Object: "/ops/refunds/:id", Action: "GET"},
				{Object: "/ops/refunds/:id/approve", Action: "POST"},
				{Object: "/ops/refunds/:id/reject", Action: "POST"},
				{Object: "/ops/refunds/:id/retry", Action: "POST"},
			},
			Immutable: true,
		},
		{
			Role: "admin",
			Policies: []Policy{
				{Object: "/admin/*", Action: "*"},
				{Object: "/ops/*", Action: "GET"},
			},
			Immutable: true,
		},
	}
}

// BootstrapBuiltinRoles 初始化预置角色与默认策略
func (s *Service) BootstrapBuiltinRoles() error {
	if err := s.ready(); err != nil {
		return err
	}

	for _, seed := range BuiltinRoleSeeds() {
		role, err := NormalizeRole(seed.Role)
		if err != nil {
			return err
		}

		exists, err := s.enforcer.HasNamedGroupingPolicy("g", role, roleAnchor)
		if err != nil {
			return fmt.Errorf("check builtin role failed: %w", err)
		}
		if !exists {
			if _, err := s.enforcer.AddNamedGroupingPolicy("g", role, roleAnchor); err != nil {
				return fmt.Errorf("create builtin role failed: %w", err)
			}
		}

		for _, parent := range seed.Inherits {
			parentRole, err := NormalizeRole(parent)
			if err != nil {
				return err
			}
			if _, err := s.enforcer.AddNamedGroupingPolicy("g", role, parentRole); err != nil {
				return fmt.Errorf("link role inheritance failed: %w", err)
			}
		}

		for _, policy := range seed.Policies {
			action := NormalizeAction(policy.Action)
			if action == "" {
				return fmt.Errorf("builtin policy action is required")
			}
			if _, err := s.enforcer.AddPolicy(role, NormalizeObject(policy.Object), action); err != nil {
				return fmt.Errorf("add builtin policy failed: %w", err)
			}
		}
	}
	return nil
}
