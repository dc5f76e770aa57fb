package test_utils

import (
	"context"

	"github.com/anef/pdfcp/pkg/user"
)

var TestAgent = user.User{Id: "agent-123", Email: "agent@anef.ma", Role: user.RoleAgent}

// ContextWithAgent returns a context carrying an agent allowed to edit lines.
func ContextWithAgent() context.Context {
	return user.WithUser(context.Background(), TestAgent)
}
