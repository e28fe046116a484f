package notification

import (
	"pubcash-backend/pkg/taskname"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
)

// Module registers the asynq task handlers. Runs in the worker process.
var Module = fx.Module("notification.service",
	fx.Provide(NewService),
	fx.Invoke(registerHandlers),
)

func registerHandlers(mux *asynq.ServeMux, s *Service) {
	mux.HandleFunc(taskname.PromotionFinished, s.HandlePromotionFinished)
	mux.HandleFunc(taskname.WithdrawalReviewed, s.HandleWithdrawalReviewed)
}
