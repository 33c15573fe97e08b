package authorization

import (
	"context"
	"errors"
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrForbidden = errors.New("forbidden")

const (
	ResourcePayments          = "payments"
	ResourceRefunds           = "refunds"
	ResourceConnectorAccounts = "connector_accounts"
	ResourceAPIKeys           = "api_keys"

	ActionRead  = "read"
	ActionWrite = "write"
)

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj && r.act == p.act
`

// Role names mirror apikey roles; they are plain strings here so casbin stays the only
// source of what a role may do.
var defaultPolicies = [][]string{
	{"merchant_readonly", ResourcePayments, ActionRead},
	{"merchant_readonly", ResourceRefunds, ActionRead},
	{"merchant_readonly", ResourceConnectorAccounts, ActionRead},
	{"merchant_developer", ResourcePayments, ActionWrite},
	{"merchant_developer", ResourceRefunds, ActionWrite},
	{"merchant_admin", ResourceConnectorAccounts, ActionWrite},
	{"merchant_admin", ResourceAPIKeys, ActionRead},
	{"merchant_admin", ResourceAPIKeys, ActionWrite},
}

var defaultRoles = [][]string{
	{"merchant_developer", "merchant_readonly"},
	{"merchant_admin", "merchant_developer"},
}

type Authorizer interface {
	Authorize(ctx context.Context, role, resource, action string) error
}

type CasbinAuthorizer struct {
	enforcer *casbin.SyncedEnforcer
	log      *zap.Logger
}

// New builds an enforcer whose policies persist in the casbin_rule table.
func New(db *gorm.DB, log *zap.Logger) (*CasbinAuthorizer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, fmt.Errorf("casbin adapter: %w", err)
	}
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, fmt.Errorf("casbin enforcer: %w", err)
	}
	return newAuthorizer(enforcer, log)
}

func newAuthorizer(enforcer *casbin.SyncedEnforcer, log *zap.Logger) (*CasbinAuthorizer, error) {
	for _, p := range defaultPolicies {
		if _, err := enforcer.AddPolicy(p[0], p[1], p[2]); err != nil {
			return nil, fmt.Errorf("seed policy %v: %w", p, err)
		}
	}
	for _, g := range defaultRoles {
		if _, err := enforcer.AddGroupingPolicy(g[0], g[1]); err != nil {
			return nil, fmt.Errorf("seed role %v: %w", g, err)
		}
	}
	return &CasbinAuthorizer{enforcer: enforcer, log: log.Named("authorization")}, nil
}

func (a *CasbinAuthorizer) Authorize(ctx context.Context, role, resource, action string) error {
	ok, err := a.enforcer.Enforce(role, resource, action)
	if err != nil {
		return err
	}
	if !ok {
		a.log.Debug("access denied",
			zap.String("role", role),
			zap.String("resource", resource),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	return nil
}
