package persistence

import (
	"fmt"

	"github.com/parleyhq/parley/model"
)

type StorageLayerError struct {
	Message string
}

func (e StorageLayerError) Error() string {
	return fmt.Sprintf("storage layer error %s", e.Message)
}

type NotFoundError struct {
	AgentId string
	FlowId  string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("flow %s not found for agent %s", e.FlowId, e.AgentId)
}

type VersionConflictError struct {
	FlowId   string
	Expected int64
	Actual   int64
}

func (e VersionConflictError) Error() string {
	return fmt.Sprintf("version conflict on flow %s: expected %d, stored %d", e.FlowId, e.Expected, e.Actual)
}

// FlowStore persists one record per (agentId, flowId). Save is a full
// overwrite; SaveIf is a conditional write keyed on the record version, the
// primitive the engine relies on to never lose a concurrent update.
// Implementations bump flow.Version on every successful write.
type FlowStore interface {
	Save(flow *model.Flow) error
	SaveIf(flow *model.Flow, expectedVersion int64) error
	Load(agentId string, flowId string) (*model.Flow, error)
	List(agentId string, statuses ...model.FlowStatus) ([]*model.Flow, error)
	Agents() ([]string, error)
}
