package conversationworker

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/FLANsa/clinic-ai-bot/cmd/mainconfig"
	appbootstrap "github.com/FLANsa/clinic-ai-bot/internal/app/bootstrap"
	appconfig "github.com/FLANsa/clinic-ai-bot/internal/config"
	"github.com/FLANsa/clinic-ai-bot/pkg/logging"
)

// Run starts the SQS conversation worker and blocks until ctx is canceled.
func Run(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) error {
	if cfg == nil {
		return fmt.Errorf("conversation worker requires config")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if cfg.UseMemoryQueue {
		return fmt.Errorf("conversation worker cannot run when USE_MEMORY_QUEUE=true; run inline workers via the API process instead")
	}

	loadAWS := func(ctx context.Context) (aws.Config, error) { return mainconfig.LoadAWSConfig(ctx, cfg) }

	rt, err := appbootstrap.BuildRuntime(ctx, cfg, logger, appbootstrap.WithAWSConfigLoader(loadAWS))
	if err != nil {
		return fmt.Errorf("failed to configure dialogue runtime: %w", err)
	}
	defer rt.Close()

	dispatcher, err := appbootstrap.BuildDispatcher(ctx, cfg, rt, loadAWS, appbootstrap.RoleConsumer, logger)
	if err != nil {
		return fmt.Errorf("failed to configure dispatcher: %w", err)
	}

	logger.Info("conversation worker started",
		"queue", cfg.ConversationQueueURL,
		"workers", cfg.WorkerCount,
		"llm_provider", cfg.LLMProvider,
	)
	return dispatcher.Run(ctx)
}
