package agent

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/parleyhq/parley/analytics"
	"github.com/parleyhq/parley/config"
	"github.com/parleyhq/parley/directory"
	"github.com/parleyhq/parley/engine"
	"github.com/parleyhq/parley/logger"
	"github.com/parleyhq/parley/persistence"
	"github.com/parleyhq/parley/persistence/inmem"
	rd "github.com/parleyhq/parley/persistence/redis"
	"github.com/parleyhq/parley/policy/script"
	"github.com/parleyhq/parley/rest"
	"github.com/parleyhq/parley/service"
	"github.com/parleyhq/parley/transport/devmail"
)

// Agent wires the process together: storage, directory, policy, transport,
// engine, sweeper and the http surface.
type Agent struct {
	Config config.Config

	store           persistence.FlowStore
	agentDirectory  directory.AgentDirectory
	flowEngine      *engine.Engine
	sweeper         *engine.Sweeper
	executorService *service.FlowExecutionService
	httpServer      *rest.Server

	shutdown     bool
	shutdownLock sync.Mutex
	wg           sync.WaitGroup
}

func New(conf config.Config) (*Agent, error) {
	a := &Agent{
		Config: conf,
	}
	setup := []func() error{
		a.setupAnalytics,
		a.setupStorage,
		a.setupEngine,
		a.setupSweeper,
		a.setupHttpServer,
	}
	for _, fn := range setup {
		if err := fn(); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *Agent) setupAnalytics() error {
	return analytics.InitDataCollector(a.Config.AnalyticsConfig)
}

func (a *Agent) setupStorage() error {
	switch a.Config.StorageType {
	case config.STORAGE_TYPE_REDIS:
		rdConf := rd.Config{
			Addrs:     a.Config.RedisConfig.Addrs,
			Namespace: a.Config.RedisConfig.Namespace,
		}
		a.store = rd.NewRedisFlowDao(rdConf)
		a.agentDirectory = rd.NewRedisDirectoryDao(rdConf)
	case config.STORAGE_TYPE_INMEM:
		a.store = inmem.NewFlowStore()
		a.agentDirectory = directory.NewInMemoryDirectory()
	default:
		return fmt.Errorf("unknown storage type %s", a.Config.StorageType)
	}
	return nil
}

func (a *Agent) setupEngine() error {
	expression := script.DefaultExpression
	if a.Config.PolicyScriptFile != "" {
		data, err := os.ReadFile(a.Config.PolicyScriptFile)
		if err != nil {
			return fmt.Errorf("can not read policy script %s: %w", a.Config.PolicyScriptFile, err)
		}
		expression = string(data)
	}
	pol := script.NewScriptPolicy(expression)
	if err := pol.Validate(); err != nil {
		return err
	}
	a.flowEngine = engine.New(a.store, a.agentDirectory, pol, devmail.New(), engine.Options{
		DefaultMaxRounds: a.Config.DefaultMaxRounds,
		DefaultTimeout:   time.Duration(a.Config.DefaultTimeoutMinutes) * time.Minute,
		WaitDeadline:     time.Duration(a.Config.WaitDeadlineMinutes) * time.Minute,
	})
	a.executorService = service.NewFlowExecutionService(a.flowEngine)
	return nil
}

func (a *Agent) setupSweeper() error {
	interval := time.Duration(a.Config.SweepIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 2 * time.Minute
	}
	a.sweeper = engine.NewSweeper(a.flowEngine, interval, &a.wg)
	return nil
}

func (a *Agent) setupHttpServer() error {
	var err error
	a.httpServer, err = rest.NewServer(a.Config.HttpPort, a.executorService)
	if err != nil {
		return err
	}
	return nil
}

func (a *Agent) Start() error {
	a.sweeper.Start()
	go func() {
		if err := a.httpServer.Start(); err != nil {
			_ = a.Shutdown()
			panic(err)
		}
	}()
	return nil
}

func (a *Agent) Shutdown() error {
	logger.Info("shutting down server")
	a.shutdownLock.Lock()
	defer a.shutdownLock.Unlock()
	if a.shutdown {
		return nil
	}
	a.shutdown = true

	shutdown := []func() error{
		a.sweeper.Stop,
		a.httpServer.Stop,
	}
	for _, fn := range shutdown {
		if err := fn(); err != nil {
			return err
		}
	}
	logger.Info("waiting for all services to shutdown...")
	a.wg.Wait()
	return nil
}
