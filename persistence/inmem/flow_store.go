package inmem

import (
	"encoding/json"
	"sync"

	"github.com/parleyhq/parley/model"
	"github.com/parleyhq/parley/persistence"
)

var _ persistence.FlowStore = (*FlowStore)(nil)

// FlowStore is a volatile FlowStore implementation backed by a process local
// map. It is safe for concurrent access and follows the same version
// semantics as the redis store, which makes it usable for tests exercising
// conflict handling. Records are cloned on every read and write so callers
// never share memory with the store.
type FlowStore struct {
	mu    sync.RWMutex
	flows map[string]map[string]*model.Flow
}

func NewFlowStore() *FlowStore {
	return &FlowStore{flows: make(map[string]map[string]*model.Flow)}
}

func (s *FlowStore) Save(flow *model.Flow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	flow.Version = flow.Version + 1
	s.putLocked(flow)
	return nil
}

func (s *FlowStore) SaveIf(flow *model.Flow, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var storedVersion int64
	if agentFlows, ok := s.flows[flow.AgentId]; ok {
		if stored, ok := agentFlows[flow.Id]; ok {
			storedVersion = stored.Version
		}
	}
	if storedVersion != expectedVersion {
		return persistence.VersionConflictError{FlowId: flow.Id, Expected: expectedVersion, Actual: storedVersion}
	}
	flow.Version = expectedVersion + 1
	s.putLocked(flow)
	return nil
}

func (s *FlowStore) Load(agentId string, flowId string) (*model.Flow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	agentFlows, ok := s.flows[agentId]
	if !ok {
		return nil, persistence.NotFoundError{AgentId: agentId, FlowId: flowId}
	}
	flow, ok := agentFlows[flowId]
	if !ok {
		return nil, persistence.NotFoundError{AgentId: agentId, FlowId: flowId}
	}
	return cloneFlow(flow), nil
}

func (s *FlowStore) List(agentId string, statuses ...model.FlowStatus) ([]*model.Flow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	flows := make([]*model.Flow, 0)
	for _, flow := range s.flows[agentId] {
		if len(statuses) == 0 {
			flows = append(flows, cloneFlow(flow))
			continue
		}
		for _, status := range statuses {
			if flow.Status == status {
				flows = append(flows, cloneFlow(flow))
				break
			}
		}
	}
	return flows, nil
}

func (s *FlowStore) Agents() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	agents := make([]string, 0, len(s.flows))
	for agentId := range s.flows {
		agents = append(agents, agentId)
	}
	return agents, nil
}

func (s *FlowStore) putLocked(flow *model.Flow) {
	agentFlows, ok := s.flows[flow.AgentId]
	if !ok {
		agentFlows = make(map[string]*model.Flow)
		s.flows[flow.AgentId] = agentFlows
	}
	agentFlows[flow.Id] = cloneFlow(flow)
}

func cloneFlow(flow *model.Flow) *model.Flow {
	data, err := json.Marshal(flow)
	if err != nil {
		clone := *flow
		return &clone
	}
	var clone model.Flow
	if err := json.Unmarshal(data, &clone); err != nil {
		shallow := *flow
		return &shallow
	}
	return &clone
}
