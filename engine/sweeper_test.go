package engine

import (
	"context"
	"testing"
	"time"

	"github.com/parleyhq/parley/model"
	"github.com/stretchr/testify/require"
)

func seedFlow(t *testing.T, f *fixture, flow *model.Flow) {
	t.Helper()
	if flow.Trigger.Subject == "" {
		flow.Trigger = testTrigger()
	}
	if flow.Requester.Email == "" {
		flow.Requester = testRequester()
	}
	if flow.CreatedAt.IsZero() {
		flow.CreatedAt = time.Now()
	}
	require.NoError(t, f.store.Save(flow))
}

func TestProcessTimeoutsTerminatesOverdueFlows(t *testing.T) {
	f := newFixture(t)
	now := time.Now()

	seedFlow(t, f, &model.Flow{
		Id: "alice-overdue", AgentId: "alice", Status: model.ACTIVE,
		MaxRounds: 5, TimeoutAt: now.Add(-time.Minute),
	})
	seedFlow(t, f, &model.Flow{
		Id: "alice-fresh", AgentId: "alice", Status: model.ACTIVE,
		MaxRounds: 5, TimeoutAt: now.Add(time.Hour),
	})
	seedFlow(t, f, &model.Flow{
		Id: "bob-overdue", AgentId: "bob", Status: model.ACTIVE,
		MaxRounds: 5, TimeoutAt: now.Add(-time.Second),
	})

	result, err := f.engine.ProcessTimeouts(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, result.Checked)
	require.Equal(t, 2, result.TimedOut)

	timedOut, err := f.store.Load("alice", "alice-overdue")
	require.NoError(t, err)
	require.Equal(t, model.TIMEOUT, timedOut.Status)
	require.Nil(t, timedOut.WaitingFor)
	require.False(t, timedOut.CompletedAt.IsZero())

	fresh, err := f.store.Load("alice", "alice-fresh")
	require.NoError(t, err)
	require.Equal(t, model.ACTIVE, fresh.Status)

	// one notification per terminated flow, each mentioning the timeout
	require.Len(t, f.transport.notifications, 2)
	for _, n := range f.transport.notifications {
		require.Contains(t, n.body, "timed out")
	}
}

func TestProcessTimeoutsHonorsWaitDeadline(t *testing.T) {
	f := newFixture(t)
	now := time.Now()

	// flow timeout is far away but the awaited reply is overdue
	seedFlow(t, f, &model.Flow{
		Id: "alice-stale-wait", AgentId: "alice", Status: model.WAITING,
		MaxRounds: 5, TimeoutAt: now.Add(time.Hour),
		WaitingFor: &model.WaitState{
			Kind:       model.WAIT_AGENT_REPLY,
			RequestId:  "req-1",
			AgentEmail: "bob@agents.test",
			ExpectedBy: now.Add(-time.Minute),
		},
	})
	seedFlow(t, f, &model.Flow{
		Id: "alice-live-wait", AgentId: "alice", Status: model.WAITING,
		MaxRounds: 5, TimeoutAt: now.Add(time.Hour),
		WaitingFor: &model.WaitState{
			Kind:       model.WAIT_AGENT_REPLY,
			RequestId:  "req-2",
			AgentEmail: "bob@agents.test",
			ExpectedBy: now.Add(30 * time.Minute),
		},
	})

	result, err := f.engine.ProcessTimeouts(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, result.Checked)
	require.Equal(t, 1, result.TimedOut)

	stale, err := f.store.Load("alice", "alice-stale-wait")
	require.NoError(t, err)
	require.Equal(t, model.TIMEOUT, stale.Status)

	live, err := f.store.Load("alice", "alice-live-wait")
	require.NoError(t, err)
	require.Equal(t, model.WAITING, live.Status)
}

func TestProcessTimeoutsIsIdempotent(t *testing.T) {
	f := newFixture(t)
	seedFlow(t, f, &model.Flow{
		Id: "alice-overdue", AgentId: "alice", Status: model.ACTIVE,
		MaxRounds: 5, TimeoutAt: time.Now().Add(-time.Minute),
	})

	first, err := f.engine.ProcessTimeouts(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, first.TimedOut)

	second, err := f.engine.ProcessTimeouts(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, second.Checked)
	require.Equal(t, 0, second.TimedOut)

	// the requester heard about the timeout exactly once
	require.Len(t, f.transport.notifications, 1)
}

func TestResumeAfterTimeoutIsRejected(t *testing.T) {
	f := newFixture(t)
	seedFlow(t, f, &model.Flow{
		Id: "alice-stale", AgentId: "alice", Status: model.WAITING,
		MaxRounds: 5, TimeoutAt: time.Now().Add(-time.Minute),
		WaitingFor: &model.WaitState{
			Kind:       model.WAIT_AGENT_REPLY,
			RequestId:  "req-1",
			AgentEmail: "bob@agents.test",
			ExpectedBy: time.Now().Add(-time.Minute),
		},
	})

	_, err := f.engine.ProcessTimeouts(context.Background())
	require.NoError(t, err)

	reply := model.InboundReply{CorrelationId: "req-1", From: "bob@agents.test", Body: "too late"}
	err = f.engine.ResumeFlow(context.Background(), "alice-stale", "alice", reply)
	require.ErrorIs(t, err, ErrFlowTerminal)
}

func TestOverdueDeadlineSelection(t *testing.T) {
	now := time.Now()
	scenarios := map[string]struct {
		flow    model.Flow
		expired bool
	}{
		"active before deadline": {
			flow:    model.Flow{Status: model.ACTIVE, TimeoutAt: now.Add(time.Minute)},
			expired: false,
		},
		"active past deadline": {
			flow:    model.Flow{Status: model.ACTIVE, TimeoutAt: now.Add(-time.Minute)},
			expired: true,
		},
		"waiting with earlier reply deadline": {
			flow: model.Flow{
				Status:     model.WAITING,
				TimeoutAt:  now.Add(time.Hour),
				WaitingFor: &model.WaitState{ExpectedBy: now.Add(-time.Second)},
			},
			expired: true,
		},
		"waiting with later reply deadline": {
			flow: model.Flow{
				Status:     model.WAITING,
				TimeoutAt:  now.Add(-time.Second),
				WaitingFor: &model.WaitState{ExpectedBy: now.Add(time.Hour)},
			},
			expired: true,
		},
	}
	for name, scenario := range scenarios {
		flow := scenario.flow
		require.Equal(t, scenario.expired, overdue(&flow, now), name)
	}
}
