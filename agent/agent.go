package agent

import (
	"fmt"
	"sync"
	"time"

	"github.com/sendloop/journey/config"
	"github.com/sendloop/journey/directory"
	"github.com/sendloop/journey/dispatch"
	"github.com/sendloop/journey/engine"
	"github.com/sendloop/journey/logger"
	"github.com/sendloop/journey/persistence"
	"github.com/sendloop/journey/persistence/memory"
	rd "github.com/sendloop/journey/persistence/redis"
	"github.com/sendloop/journey/rest"
	"github.com/sendloop/journey/util"
	"github.com/sendloop/journey/validator"
)

type Agent struct {
	Config          config.Config
	storage         persistence.Storage
	directory       directory.Service
	mutator         directory.Mutator
	sender          dispatch.Sender
	engine          *engine.Engine
	validator       *validator.Validator
	httpServer      *rest.Server
	schedulerWorker *util.TickWorker
	shutdown        bool
	shutdowns       chan struct{}
	shutdownLock    sync.Mutex
	wg              sync.WaitGroup
}

func New(config config.Config) (*Agent, error) {
	a := &Agent{
		Config:    config,
		shutdowns: make(chan struct{}),
	}
	setup := []func() error{
		a.setupStorage,
		a.setupCollaborators,
		a.setupEngine,
		a.setupHttpServer,
		a.setupSchedulerWorker,
	}
	for _, fn := range setup {
		if err := fn(); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *Agent) setupStorage() error {
	switch a.Config.StorageType {
	case config.STORAGE_TYPE_REDIS:
		a.storage = rd.NewStorage(rd.Config{
			Addrs:     a.Config.RedisConfig.Addrs,
			Namespace: a.Config.RedisConfig.Namespace,
			Password:  a.Config.RedisConfig.Password,
			PoolSize:  a.Config.RedisConfig.PoolSize,
			BackupDir: a.Config.BackupDir,
		})
	case config.STORAGE_TYPE_INMEM:
		a.storage = memory.NewStore(a.Config.BackupDir)
	default:
		return fmt.Errorf("unknown storage type %s", a.Config.StorageType)
	}
	return nil
}

func (a *Agent) setupCollaborators() error {
	client := directory.NewHttpClient(a.Config.DirectoryUrl)
	a.directory = client
	a.mutator = client
	a.sender = dispatch.NewHttpSender(a.Config.DispatchUrl, a.Config.DispatchToken)
	return nil
}

func (a *Agent) setupEngine() error {
	a.engine = engine.New(a.storage, a.directory, a.mutator, a.sender)
	a.validator = validator.New(a.sender)
	return nil
}

func (a *Agent) setupHttpServer() error {
	var err error
	a.httpServer, err = rest.NewServer(a.Config.HttpPort, a.storage, a.engine, a.validator)
	if err != nil {
		return err
	}
	return nil
}

func (a *Agent) setupSchedulerWorker() error {
	interval := time.Duration(a.Config.SchedulerInterval) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	a.schedulerWorker = util.NewTickWorker("scheduler-drain", interval, a.shutdowns, func() {
		a.engine.ProcessScheduledExecutions(time.Now())
	}, &a.wg)
	return nil
}

func (a *Agent) Start() error {
	a.schedulerWorker.Start()
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
	close(a.shutdowns)

	if err := a.httpServer.Stop(); err != nil {
		return err
	}
	logger.Info("waiting for all services to shutdown...")
	a.wg.Wait()
	return nil
}
