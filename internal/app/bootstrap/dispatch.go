package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/sqs"

	appconfig "github.com/FLANsa/clinic-ai-bot/internal/config"
	"github.com/FLANsa/clinic-ai-bot/internal/dispatch"
	"github.com/FLANsa/clinic-ai-bot/pkg/logging"
)

const memoryQueueBuffer = 256

// DispatchRole says whether this process consumes the queue.
type DispatchRole int

const (
	// RoleProducer only enqueues; a separate worker consumes SQS.
	RoleProducer DispatchRole = iota
	// RoleConsumer runs the worker pool.
	RoleConsumer
)

// BuildReplySink posts replies to REPLY_CALLBACK_URL, or logs them.
func BuildReplySink(cfg *appconfig.Config, logger *logging.Logger) dispatch.ReplySink {
	if cfg != nil && strings.TrimSpace(cfg.ReplyCallbackURL) != "" {
		return dispatch.NewCallbackSink(cfg.ReplyCallbackURL, nil)
	}
	return dispatch.NewLogSink(logger)
}

// BuildDispatcher wires the queue and worker pool around rt.Processor. With
// USE_MEMORY_QUEUE the API process always runs its own workers.
func BuildDispatcher(ctx context.Context, cfg *appconfig.Config, rt *Runtime, loadAWS AWSConfigLoader, role DispatchRole, logger *logging.Logger) (*dispatch.Dispatcher, error) {
	if cfg == nil || rt == nil {
		return nil, fmt.Errorf("bootstrap: config and runtime are required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	sink := BuildReplySink(cfg, logger)
	opts := []dispatch.Option{dispatch.WithWorkerCount(cfg.WorkerCount)}

	if cfg.UseMemoryQueue {
		if role == RoleConsumer {
			return nil, fmt.Errorf("bootstrap: a standalone worker cannot consume the in-memory queue; set USE_MEMORY_QUEUE=false")
		}
		logger.Info("using in-memory conversation queue", "workers", cfg.WorkerCount)
		return dispatch.New(rt.Processor, dispatch.NewMemoryQueue(memoryQueueBuffer), sink, rt.Metrics, logger, opts...), nil
	}

	if strings.TrimSpace(cfg.ConversationQueueURL) == "" {
		return nil, fmt.Errorf("bootstrap: CONVERSATION_QUEUE_URL is required when USE_MEMORY_QUEUE=false")
	}
	if loadAWS == nil {
		return nil, fmt.Errorf("bootstrap: aws config loader is required for sqs")
	}
	awsCfg, err := loadAWS(ctx)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: load aws config: %w", err)
	}
	if role == RoleProducer {
		opts = append(opts, dispatch.WithoutWorkers())
	} else {
		opts = append(opts, dispatch.WithReceiveWaitSeconds(20), dispatch.WithReceiveBatchSize(10))
	}
	queue := dispatch.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.ConversationQueueURL)
	logger.Info("using sqs conversation queue", "role", role.String())
	return dispatch.New(rt.Processor, queue, sink, rt.Metrics, logger, opts...), nil
}

func (r DispatchRole) String() string {
	if r == RoleConsumer {
		return "consumer"
	}
	return "producer"
}
