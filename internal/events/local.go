package events

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Gopher0727/bytehub/internal/pkg/metrics"
	"github.com/Gopher0727/bytehub/internal/utils"
	logger "github.com/Gopher0727/bytehub/middleware/log"
)

const localHandlerTimeout = 30 * time.Second

// LocalPublisher hands events to an in-process executor when no broker is
// configured. Events are lost if the process exits before they run.
type LocalPublisher struct {
	exec    utils.Executor
	granter BoostGranter
	log     *logger.Logger
}

func NewLocalPublisher(exec utils.Executor, granter BoostGranter, log *logger.Logger) *LocalPublisher {
	if log == nil {
		log = logger.NewNop()
	}
	return &LocalPublisher{exec: exec, granter: granter, log: log}
}

func (p *LocalPublisher) PublishMembershipGranted(ctx context.Context, evt MembershipGranted) error {
	// the request context is canceled once the response is written
	traceID := logger.GetTraceID(ctx)
	p.exec.Submit(func() {
		jobCtx, cancel := context.WithTimeout(logger.WithTraceID(context.Background(), traceID), localHandlerTimeout)
		defer cancel()

		created, err := p.granter.GrantInitialBoosts(jobCtx, evt.UserID, evt.MembershipID, evt.InitialBoosts)
		if err != nil {
			p.log.ErrorContext(jobCtx, "initial boost grant failed",
				zap.String("user_id", evt.UserID),
				zap.String("membership_id", evt.MembershipID),
				zap.Error(err),
			)
			return
		}
		p.log.InfoContext(jobCtx, "initial boosts granted",
			zap.String("user_id", evt.UserID),
			zap.String("membership_id", evt.MembershipID),
			zap.Int("created", created),
		)
	})
	metrics.EventsPublished.WithLabelValues(TypeMembershipGranted, "local").Inc()
	return nil
}
