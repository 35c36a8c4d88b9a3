package admin

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/shipcycle/internal/http/response"
	"github.com/shipcycle/internal/logger"

	"github.com/gin-gonic/gin"
)

type authzRolePayload struct {
	Role string `json:"role" binding:"required"`
}

type authzPolicyPayload struct {
	Role   string `json:"role" binding:"required"`
	Object string `json:"object" binding:"required"`
	Action string `json:"action" binding:"required"`
}

type authzSetAccountRolesPayload struct {
	Roles []string `json:"roles"`
}

// GetAuthzMe 获取当前账号权限快照
func (h *Handler) GetAuthzMe(c *gin.Context) {
	accountID, ok := getAccountID(c)
	if !ok {
		return
	}

	roles, err := h.AuthzService.GetAccountRoles(accountID)
	if err != nil {
		respondError(c, response.CodeInternal, "authz fetch failed", err)
		return
	}
	policies, err := h.AuthzService.GetAccountPolicies(accountID)
	if err != nil {
		respondError(c, response.CodeInternal, "authz fetch failed", err)
		return
	}

	response.Success(c, gin.H{
		"account_id": accountID,
		"role":       getAccountRole(c),
		"roles":      roles,
		"policies":   policies,
	})
}

// ListAuthzRoles 获取角色列表
func (h *Handler) ListAuthzRoles(c *gin.Context) {
	roles, err := h.AuthzService.ListRoles()
	if err != nil {
		respondError(c, response.CodeInternal, "authz fetch failed", err)
		return
	}
	response.Success(c, roles)
}

// CreateAuthzRole 创建角色
func (h *Handler) CreateAuthzRole(c *gin.Context) {
	var req authzRolePayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	role, err := h.AuthzService.EnsureRole(req.Role)
	if err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	logger.Infow("admin_authz_role_created",
		"operator_account_id", currentAccountID(c),
		"role", role,
	)

	response.Success(c, gin.H{"role": role})
}

// DeleteAuthzRole 删除角色
func (h *Handler) DeleteAuthzRole(c *gin.Context) {
	role := decodeRoleParam(c.Param("role"))
	if strings.TrimSpace(role) == "" {
		respondError(c, response.CodeBadRequest, "bad request", nil)
		return
	}

	if err := h.AuthzService.DeleteRole(role); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	logger.Infow("admin_authz_role_deleted",
		"operator_account_id", currentAccountID(c),
		"role", role,
	)

	response.Success(c, nil)
}

// GetAuthzRolePolicies 获取角色策略
func (h *Handler) GetAuthzRolePolicies(c *gin.Context) {
	role := decodeRoleParam(c.Param("role"))
	if strings.TrimSpace(role) == "" {
		respondError(c, response.CodeBadRequest, "bad request", nil)
		return
	}

	policies, err := h.AuthzService.GetRolePolicies(role)
	if err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	response.Success(c, policies)
}

// GrantAuthzPolicy 授予角色策略
func (h *Handler) GrantAuthzPolicy(c *gin.Context) {
	var req authzPolicyPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	if err := h.AuthzService.GrantRolePolicy(req.Role, req.Object, req.Action); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	logger.Infow("admin_authz_policy_granted",
		"operator_account_id", currentAccountID(c),
		"role", req.Role,
		"object", req.Object,
		"action", req.Action,
	)

	response.Success(c, nil)
}

// RevokeAuthzPolicy 撤销角色策略
func (h *Handler) RevokeAuthzPolicy(c *gin.Context) {
	var req authzPolicyPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	if err := h.AuthzService.RevokeRolePolicy(req.Role, req.Object, req.Action); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	logger.Infow("admin_authz_policy_revoked",
		"operator_account_id", currentAccountID(c),
		"role", req.Role,
		"object", req.Object,
		"action", req.Action,
	)

	response.Success(c, nil)
}

// GetAuthzAccountRoles 获取账号角色
func (h *Handler) GetAuthzAccountRoles(c *gin.Context) {
	accountID, ok := parseAccountIDParam(c)
	if !ok {
		return
	}

	roles, err := h.AuthzService.GetAccountRoles(accountID)
	if err != nil {
		respondError(c, response.CodeInternal, "authz fetch failed", err)
		return
	}
	response.Success(c, roles)
}

// SetAuthzAccountRoles 覆盖设置账号角色
func (h *Handler) SetAuthzAccountRoles(c *gin.Context) {
	accountID, ok := parseAccountIDParam(c)
	if !ok {
		return
	}

	var req authzSetAccountRolesPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	if err := h.AuthzService.SetAccountRoles(accountID, req.Roles); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	logger.Infow("admin_authz_account_roles_updated",
		"operator_account_id", currentAccountID(c),
		"target_account_id", accountID,
		"roles", req.Roles,
	)

	response.Success(c, nil)
}

func parseAccountIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "account id invalid", nil)
		return 0, false
	}
	return uint(id), true
}

func decodeRoleParam(value string) string {
	decoded, err := url.QueryUnescape(value)
	if err != nil {
		return strings.TrimSpace(value)
	}
	return strings.TrimSpace(decoded)
}

func currentAccountID(c *gin.Context) uint {
	value, exists := c.Get("account_id")
	if !exists {
		return 0
	}
	switch accountID := value.(type) {
	case uint:
		return accountID
	case int:
		if accountID > 0 {
			return uint(accountID)
		}
	case float64:
		if accountID > 0 {
			return uint(accountID)
		}
	}
	return 0
}
