package worker

import (
	"github.com/hibiken/asynq"

	"invest-service/internal/services"
)

type Worker struct {
	Notifications *services.NotificationService
	Deposits      *services.DepositService
	Investments   *services.InvestmentService
}

func NewWorker(notifications *services.NotificationService, deposits *services.DepositService, investments *services.InvestmentService) *Worker {
	return &Worker{
		Notifications: notifications,
		Deposits:      deposits,
		Investments:   investments,
	}
}

func (w *Worker) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeNotificationDeliver, w.HandleNotificationDeliver)
	mux.HandleFunc(TypeGatewayPoll, w.HandleGatewayPoll)
	return mux
}

// StartWorker blocks processing tasks until the server receives a shutdown signal.
func StartWorker(redisOpt asynq.RedisClientOpt, w *Worker) error {
	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
		},
	)
	return srv.Run(w.Mux())
}
