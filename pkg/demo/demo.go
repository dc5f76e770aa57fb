package demo

import (
	"slices"
	"strings"
)

const (
	AdminAccountId = "demo-admin"
	DgAccountId    = "demo-dg"
	AdminEmail     = "demo@anef.ma"
	DgEmail        = "demo.dg@anef.ma"
)

var (
	accountIds = []string{AdminAccountId, DgAccountId}
	emails     = []string{AdminEmail, DgEmail}
)

// Gate decides whether the demo ADMIN and DG identities may be used. It is built once from
// configuration and is immutable afterwards.
type Gate struct {
	disabled bool
}

// NewGate interprets the raw configuration value. Only the exact string "false" enables the demo
// accounts; anything else, including an empty value, keeps them disabled.
func NewGate(rawDisableFlag string) Gate {
	return Gate{disabled: rawDisableFlag != "false"}
}

func (g Gate) IsDemoAdminDgDisabled() bool {
	return g.disabled
}

func IsDemoAdminOrDgAccount(accountId string) bool {
	return slices.Contains(accountIds, accountId)
}

func IsDemoAdminOrDgEmail(email string) bool {
	return slices.Contains(emails, strings.ToLower(strings.TrimSpace(email)))
}

// IsBlocked reports whether a request made as the given identity must be refused.
func (g Gate) IsBlocked(accountId, email string) bool {
	if !g.disabled {
		return false
	}
	return IsDemoAdminOrDgAccount(accountId) || IsDemoAdminOrDgEmail(email)
}
