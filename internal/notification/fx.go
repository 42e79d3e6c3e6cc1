package notification

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/smallbiznis/turnos/internal/clock"
	"github.com/smallbiznis/turnos/internal/config"
	"github.com/smallbiznis/turnos/internal/notification/dispatcher"
	"github.com/smallbiznis/turnos/internal/notification/domain"
	obsmetrics "github.com/smallbiznis/turnos/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("notification",
	fx.Provide(provideDispatcher),
)

var WorkerModule = fx.Module("notification.worker",
	fx.Provide(provideWorker),
	fx.Invoke(registerWorker),
)

type Params struct {
	fx.In

	Lifecycle   fx.Lifecycle
	Config      config.Config
	Log         *zap.Logger
	Clock       clock.Clock
	Metrics     *obsmetrics.Metrics     `optional:"true"`
	HTTPMetrics *obsmetrics.HTTPMetrics `optional:"true"`
}

func RedisClientOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

func provideDispatcher(p Params) domain.Dispatcher {
	if !p.Config.Notification.Enabled || !p.Config.Redis.Enabled() {
		p.Log.Info("notification queue disabled, logging events instead")
		return dispatcher.NewLogDispatcher(p.Log, p.Metrics)
	}

	enqueuer := dispatcher.NewEnqueuer(dispatcher.EnqueuerConfig{
		Client:      asynq.NewClient(RedisClientOpt(p.Config.Redis)),
		Queue:       p.Config.Notification.Queue,
		Log:         p.Log,
		Clock:       p.Clock,
		Metrics:     p.Metrics,
		HTTPMetrics: p.HTTPMetrics,
	})
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return enqueuer.Close()
		},
	})
	return enqueuer
}

func provideWorker(p Params) (*dispatcher.Worker, error) {
	return dispatcher.NewWorker(dispatcher.WorkerConfig{
		RedisOpts:   RedisClientOpt(p.Config.Redis),
		Queue:       p.Config.Notification.Queue,
		Concurrency: p.Config.Notification.Concurrency,
		Handler:     dispatcher.NewLogDispatcher(p.Log, p.Metrics),
		Log:         p.Log,
		HTTPMetrics: p.HTTPMetrics,
	})
}

func registerWorker(lc fx.Lifecycle, worker *dispatcher.Worker, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info("starting notification worker")
			return worker.Start()
		},
		OnStop: func(context.Context) error {
			worker.Shutdown()
			return nil
		},
	})
}
