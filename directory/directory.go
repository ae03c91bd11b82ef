package directory

import (
	"context"
	"fmt"
	"strings"

	"github.com/parleyhq/parley/model"
)

type NotFoundError struct {
	AgentId string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("agent %s not found in directory", e.AgentId)
}

// AgentDirectory resolves agent ids to profiles and email addresses. It is
// injected into the engine; nothing reaches it through a package-level
// singleton.
type AgentDirectory interface {
	GetProfile(ctx context.Context, agentId string) (*model.AgentProfile, error)
	// ResolveEmail accepts an email address (returned unchanged) or an agent
	// id, which is looked up in the directory.
	ResolveEmail(ctx context.Context, agentIdOrEmail string) (string, error)
	SaveProfile(ctx context.Context, profile *model.AgentProfile) error
}

func IsEmail(s string) bool {
	return strings.Contains(s, "@")
}
