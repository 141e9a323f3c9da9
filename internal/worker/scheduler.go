package worker

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Scheduler runs the periodic jobs: gateway polling and investment maturity.
type Scheduler struct {
	cron   *cron.Cron
	worker *Worker
}

func NewScheduler(w *Worker) *Scheduler {
	return &Scheduler{cron: cron.New(), worker: w}
}

// Register adds both jobs. An empty spec disables that job.
func (s *Scheduler) Register(gatewayPollSpec, maturitySpec string) error {
	if gatewayPollSpec != "" {
		if _, err := s.cron.AddFunc(gatewayPollSpec, s.PollGateway); err != nil {
			return err
		}
		logrus.WithField("spec", gatewayPollSpec).Info("gateway poll job scheduled")
	}
	if maturitySpec != "" {
		if _, err := s.cron.AddFunc(maturitySpec, s.MatureInvestments); err != nil {
			return err
		}
		logrus.WithField("spec", maturitySpec).Info("investment maturity job scheduled")
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) PollGateway() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := s.worker.Deposits.EnqueueGatewayPolls(ctx)
	if err != nil {
		logrus.WithError(err).Error("enqueue gateway polls failed")
		return
	}
	if n > 0 {
		logrus.WithField("count", n).Info("gateway polls enqueued")
	}
}

func (s *Scheduler) MatureInvestments() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	n, err := s.worker.Investments.MatureDue(ctx, time.Now())
	if err != nil {
		logrus.WithError(err).Error("investment maturity run failed")
		return
	}
	if n > 0 {
		logrus.WithField("count", n).Info("investments matured")
	}
}
