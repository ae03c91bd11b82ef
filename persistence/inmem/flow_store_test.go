package inmem

import (
	"testing"
	"time"

	"github.com/parleyhq/parley/model"
	"github.com/parleyhq/parley/persistence"
	"github.com/stretchr/testify/require"
)

func newFlow(agentId string, flowId string, status model.FlowStatus) *model.Flow {
	return &model.Flow{
		Id:        flowId,
		AgentId:   agentId,
		Status:    status,
		MaxRounds: 5,
		TimeoutAt: time.Now().Add(time.Hour),
		CreatedAt: time.Now(),
	}
}

func TestSaveAndLoad(t *testing.T) {
	store := NewFlowStore()
	flow := newFlow("alice", "alice-1", model.ACTIVE)
	require.NoError(t, store.Save(flow))
	require.Equal(t, int64(1), flow.Version)

	loaded, err := store.Load("alice", "alice-1")
	require.NoError(t, err)
	require.Equal(t, flow.Id, loaded.Id)
	require.Equal(t, model.ACTIVE, loaded.Status)
	require.Equal(t, int64(1), loaded.Version)

	// the store hands out copies, mutating one must not leak into the other
	loaded.Status = model.FAILED
	again, err := store.Load("alice", "alice-1")
	require.NoError(t, err)
	require.Equal(t, model.ACTIVE, again.Status)
}

func TestLoadUnknownFlow(t *testing.T) {
	store := NewFlowStore()
	_, err := store.Load("alice", "alice-missing")
	require.Error(t, err)
	require.ErrorAs(t, err, &persistence.NotFoundError{})
}

func TestSaveIfDetectsConflict(t *testing.T) {
	store := NewFlowStore()
	flow := newFlow("alice", "alice-1", model.ACTIVE)
	require.NoError(t, store.Save(flow))

	first, err := store.Load("alice", "alice-1")
	require.NoError(t, err)
	second, err := store.Load("alice", "alice-1")
	require.NoError(t, err)

	first.Status = model.WAITING
	require.NoError(t, store.SaveIf(first, first.Version))
	require.Equal(t, int64(2), first.Version)

	second.Status = model.FAILED
	err = store.SaveIf(second, second.Version)
	require.Error(t, err)
	var conflict persistence.VersionConflictError
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, int64(1), conflict.Expected)
	require.Equal(t, int64(2), conflict.Actual)

	// the losing write left no trace
	stored, err := store.Load("alice", "alice-1")
	require.NoError(t, err)
	require.Equal(t, model.WAITING, stored.Status)
}

func TestSaveIfCreatesWhenVersionZero(t *testing.T) {
	store := NewFlowStore()
	flow := newFlow("alice", "alice-1", model.ACTIVE)
	require.NoError(t, store.SaveIf(flow, 0))
	require.Equal(t, int64(1), flow.Version)

	duplicate := newFlow("alice", "alice-1", model.ACTIVE)
	require.Error(t, store.SaveIf(duplicate, 0))
}

func TestListFiltersByStatus(t *testing.T) {
	store := NewFlowStore()
	require.NoError(t, store.Save(newFlow("alice", "alice-1", model.ACTIVE)))
	require.NoError(t, store.Save(newFlow("alice", "alice-2", model.WAITING)))
	require.NoError(t, store.Save(newFlow("alice", "alice-3", model.COMPLETED)))
	require.NoError(t, store.Save(newFlow("bob", "bob-1", model.ACTIVE)))

	all, err := store.List("alice")
	require.NoError(t, err)
	require.Len(t, all, 3)

	open, err := store.List("alice", model.ACTIVE, model.WAITING)
	require.NoError(t, err)
	require.Len(t, open, 2)

	none, err := store.List("carol")
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestAgents(t *testing.T) {
	store := NewFlowStore()
	agents, err := store.Agents()
	require.NoError(t, err)
	require.Empty(t, agents)

	require.NoError(t, store.Save(newFlow("alice", "alice-1", model.ACTIVE)))
	require.NoError(t, store.Save(newFlow("bob", "bob-1", model.ACTIVE)))

	agents, err = store.Agents()
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"alice", "bob"}, agents)
}
