package engine

import (
	"context"
	"sync"
	"time"

	"github.com/parleyhq/parley/logger"
	"github.com/parleyhq/parley/model"
	"github.com/parleyhq/parley/util"
	"go.uber.org/zap"
)

type SweepResult struct {
	Checked  int `json:"checked"`
	TimedOut int `json:"timedOut"`
}

// ProcessTimeouts scans every non-terminal flow of every known agent and
// force-terminates the overdue ones. Safe to call repeatedly: a flow is
// transitioned once, after which it is terminal and excluded from the next
// enumeration.
func (e *Engine) ProcessTimeouts(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	agents, err := e.store.Agents()
	if err != nil {
		return result, err
	}
	now := time.Now()
	for _, agentId := range agents {
		flows, err := e.store.List(agentId, model.ACTIVE, model.WAITING)
		if err != nil {
			logger.Error("error listing flows during sweep", zap.String("agentId", agentId), zap.Error(err))
			continue
		}
		for _, flow := range flows {
			result.Checked = result.Checked + 1
			if !overdue(flow, now) {
				continue
			}
			lock := e.locks.get(flow.Id)
			lock.Lock()
			fresh, err := e.store.Load(agentId, flow.Id)
			if err != nil || fresh.Status.IsTerminal() || !overdue(fresh, now) {
				lock.Unlock()
				continue
			}
			if err := e.timeoutLocked(ctx, fresh); err != nil {
				logger.Error("error timing out flow", zap.String("flowId", flow.Id), zap.Error(err))
				lock.Unlock()
				continue
			}
			result.TimedOut = result.TimedOut + 1
			lock.Unlock()
		}
	}
	logger.Info("timeout sweep finished", zap.Int("checked", result.Checked), zap.Int("timedOut", result.TimedOut))
	return result, nil
}

// overdue applies the flow deadline, tightened by the wait deadline while the
// flow is suspended on an external reply.
func overdue(flow *model.Flow, now time.Time) bool {
	deadline := flow.TimeoutAt
	if flow.Status == model.WAITING && flow.WaitingFor != nil && flow.WaitingFor.ExpectedBy.Before(deadline) {
		deadline = flow.WaitingFor.ExpectedBy
	}
	return !now.Before(deadline)
}

// Sweeper drives ProcessTimeouts on a fixed interval.
type Sweeper struct {
	engine   *Engine
	interval time.Duration
	stop     chan struct{}
	wg       *sync.WaitGroup
	tw       *util.TickWorker
}

func NewSweeper(engine *Engine, interval time.Duration, wg *sync.WaitGroup) *Sweeper {
	return &Sweeper{
		engine:   engine,
		interval: interval,
		stop:     make(chan struct{}),
		wg:       wg,
	}
}

func (s *Sweeper) Start() {
	s.tw = util.NewTickWorker("timeout-sweeper", s.interval, s.stop, s.sweep, s.wg)
	s.tw.Start()
}

func (s *Sweeper) Stop() error {
	if s.tw != nil && s.tw.IsRunning() {
		s.tw.Stop()
	}
	return nil
}

func (s *Sweeper) sweep() {
	if _, err := s.engine.ProcessTimeouts(context.Background()); err != nil {
		logger.Error("timeout sweep failed", zap.Error(err))
	}
}
