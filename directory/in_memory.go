package directory

import (
	"context"
	"sync"

	"github.com/parleyhq/parley/model"
)

var _ AgentDirectory = (*InMemoryDirectory)(nil)

// InMemoryDirectory keeps profiles in a process local map. Suited for tests
// and single-node dev setups.
type InMemoryDirectory struct {
	mu       sync.RWMutex
	profiles map[string]*model.AgentProfile
}

func NewInMemoryDirectory() *InMemoryDirectory {
	return &InMemoryDirectory{profiles: make(map[string]*model.AgentProfile)}
}

func (d *InMemoryDirectory) GetProfile(ctx context.Context, agentId string) (*model.AgentProfile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	profile, ok := d.profiles[agentId]
	if !ok {
		return nil, NotFoundError{AgentId: agentId}
	}
	clone := *profile
	return &clone, nil
}

func (d *InMemoryDirectory) ResolveEmail(ctx context.Context, agentIdOrEmail string) (string, error) {
	if IsEmail(agentIdOrEmail) {
		return agentIdOrEmail, nil
	}
	profile, err := d.GetProfile(ctx, agentIdOrEmail)
	if err != nil {
		return "", err
	}
	return profile.Email, nil
}

func (d *InMemoryDirectory) SaveProfile(ctx context.Context, profile *model.AgentProfile) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	clone := *profile
	d.profiles[profile.Id] = &clone
	return nil
}
