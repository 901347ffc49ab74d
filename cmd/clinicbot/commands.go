package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/FLANsa/clinic-ai-bot/cmd/mainconfig"
	appbootstrap "github.com/FLANsa/clinic-ai-bot/internal/app/bootstrap"
	appconfig "github.com/FLANsa/clinic-ai-bot/internal/config"
	"github.com/FLANsa/clinic-ai-bot/internal/dispatch"
	"github.com/FLANsa/clinic-ai-bot/internal/llm"
	"github.com/FLANsa/clinic-ai-bot/pkg/logging"
)

type sessionFlags struct {
	catalog string
	channel string
	userID  string
	locale  string
}

func newRootCmd() *cobra.Command {
	flags := &sessionFlags{}
	root := &cobra.Command{
		Use:           "clinicbot",
		Short:         "Talk to the clinic assistant from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.catalog, "catalog", "testdata/catalog.json", "JSON catalog used when DATABASE_URL is unset")
	root.PersistentFlags().StringVar(&flags.channel, "channel", "web", "channel persona (whatsapp, instagram, facebook, tiktok, web)")
	root.PersistentFlags().StringVar(&flags.userID, "user", "local-user", "conversation user id; a phone number doubles as the booking phone")
	root.PersistentFlags().StringVar(&flags.locale, "locale", "", "reply locale override (en or ar)")

	root.AddCommand(newChatCmd(flags), newAskCmd(flags), newLLMCheckCmd())
	return root
}

func newChatCmd(flags *sessionFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation",
		Long: `Start an interactive conversation. Each line is one customer message.

Examples:
  clinicbot chat
  clinicbot chat --channel whatsapp --user 966500000001 --locale ar`,
		RunE: func(cmd *cobra.Command, args []string) error {
			processor, closeFn, err := openSession(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer closeFn()
			return chatLoop(cmd.Context(), processor, flags, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func newAskCmd(flags *sessionFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <message>",
		Short: "Send one message and print the reply as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			processor, closeFn, err := openSession(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer closeFn()

			reply := processor.Process(cmd.Context(), dispatch.Job{
				Channel: flags.channel,
				UserID:  flags.userID,
				Message: strings.Join(args, " "),
			})
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(reply)
		},
	}
}

func openSession(ctx context.Context, flags *sessionFlags) (*dispatch.Processor, func(), error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := appconfig.Load()
	if flags.locale != "" {
		cfg.ReplyLocale = strings.ToLower(flags.locale)
	}
	// Keep the terminal readable: only warnings and errors are logged.
	logger := logging.New("warn")

	rt, err := appbootstrap.BuildRuntime(ctx, cfg, logger,
		appbootstrap.WithCatalogFile(flags.catalog),
		appbootstrap.WithAWSConfigLoader(awsLoader(cfg)),
		appbootstrap.WithRegisterer(prometheus.NewRegistry()),
	)
	if err != nil {
		return nil, nil, err
	}
	return rt.Processor, rt.Close, nil
}

func chatLoop(ctx context.Context, processor *dispatch.Processor, flags *sessionFlags, in io.Reader, out io.Writer) error {
	fmt.Fprintf(out, "clinicbot on %s as %s. Type /quit to exit.\n", flags.channel, flags.userID)
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		}

		reply := processor.Process(ctx, dispatch.Job{Channel: flags.channel, UserID: flags.userID, Message: line})
		fmt.Fprintln(out, reply.Text)
		fmt.Fprintf(out, "  [intent=%s context=%t handoff=%t]\n", orDash(reply.Intent), reply.ContextUsed, reply.NeedsHandoff)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func awsLoader(cfg *appconfig.Config) appbootstrap.AWSConfigLoader {
	return func(ctx context.Context) (aws.Config, error) { return mainconfig.LoadAWSConfig(ctx, cfg) }
}

func newLLMCheckCmd() *cobra.Command {
	var prompt string
	cmd := &cobra.Command{
		Use:   "llm-check",
		Short: "Send one prompt straight to the configured completion providers",
		Long: `Send one prompt straight to the configured completion providers,
bypassing the dialogue pipeline. Useful for checking keys and model ids.

Examples:
  LLM_PROVIDER=bedrock LLM_FALLBACK_PROVIDER=gemini clinicbot llm-check`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := appconfig.Load()
			client, closeFn, err := appbootstrap.BuildLLMClient(cmd.Context(), cfg, awsLoader(cfg), nil, logging.New("warn"))
			if err != nil {
				return err
			}
			defer closeFn()
			return runLLMCheck(cmd.Context(), client, cfg, prompt, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&prompt, "prompt", "Reply with one short sentence greeting a clinic customer.", "user prompt to send")
	return cmd
}

func runLLMCheck(ctx context.Context, client llm.Client, cfg *appconfig.Config, prompt string, out io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, cfg.LLMTimeout)
	defer cancel()

	fmt.Fprintf(out, "provider=%s fallback=%s\n", cfg.LLMProvider, orDash(cfg.LLMFallbackProvider))
	start := time.Now()
	resp, err := client.Complete(ctx, llm.Request{
		System:      []string{"You are a brief, friendly clinic receptionist."},
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		MaxTokens:   int32(cfg.LLMMaxTokens),
		Temperature: float32(cfg.LLMTemperature),
	})
	if err != nil {
		return fmt.Errorf("completion failed after %s: %w", time.Since(start).Round(time.Millisecond), err)
	}
	fmt.Fprintf(out, "reply (%s): %s\n", time.Since(start).Round(time.Millisecond), strings.TrimSpace(resp.Text))
	fmt.Fprintf(out, "tokens: in=%d out=%d\n", resp.Usage.InputTokens, resp.Usage.OutputTokens)
	return nil
}
