package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-admin/assistant/internal/client/assistant"
	"github.com/zhouzirui/z-admin/assistant/internal/config"
	"github.com/zhouzirui/z-admin/assistant/internal/model/chat"
	"github.com/zhouzirui/z-admin/assistant/internal/observability"
	"github.com/zhouzirui/z-admin/assistant/internal/service/action"
	"github.com/zhouzirui/z-admin/assistant/internal/service/session"
)

type options struct {
	baseURL     string
	apiKey      string
	userID      string
	storagePath string
	page        string
	timeout     time.Duration
	logLevel    string
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(cfg).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCommand(cfg *config.Config) *cobra.Command {
	opts := &options{
		baseURL:     cfg.Client.BaseURL,
		apiKey:      cfg.Client.APIKey,
		userID:      cfg.Client.UserID,
		storagePath: cfg.Client.StoragePath,
		timeout:     cfg.Client.Timeout,
		page:        "/dashboard",
		logLevel:    "warn",
	}

	root := &cobra.Command{
		Use:          "assistant",
		Short:        "Chat with the admin console assistant from a terminal",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.baseURL, "base-url", opts.baseURL, "chat service base URL")
	flags.StringVar(&opts.apiKey, "api-key", opts.apiKey, "static API key sent as X-API-Key")
	flags.StringVar(&opts.userID, "user", opts.userID, "user id used when creating the session")
	flags.StringVar(&opts.storagePath, "storage", opts.storagePath, "local storage file holding auth tokens")
	flags.DurationVar(&opts.timeout, "timeout", opts.timeout, "per request timeout")
	flags.StringVar(&opts.logLevel, "log-level", opts.logLevel, "log level (debug, info, warn, error)")
	root.Flags().StringVar(&opts.page, "page", opts.page, "console page reported as chat context")

	root.AddCommand(newHealthCommand(opts), newLoginCommand(opts))
	return root
}

func newHealthCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the chat service is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := buildClient(opts)
			if err != nil {
				return err
			}
			if !client.HealthCheck(cmd.Context()) {
				return fmt.Errorf("chat service at %s is not healthy", opts.baseURL)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}

func newLoginCommand(opts *options) *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store a bearer token in local storage",
		RunE: func(cmd *cobra.Command, args []string) error {
			token = strings.TrimSpace(token)
			if token == "" {
				return fmt.Errorf("--token is required")
			}
			store, err := assistant.OpenFileStore(opts.storagePath)
			if err != nil {
				return err
			}
			if err := store.Set(assistant.TokenKey, token); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "token saved to %s\n", opts.storagePath)
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "bearer token")
	return cmd
}

func buildClient(opts *options) (*assistant.Client, *zap.Logger, error) {
	logger, err := observability.NewLogger(observability.Options{Level: opts.logLevel})
	if err != nil {
		return nil, nil, err
	}

	store, err := assistant.OpenFileStore(opts.storagePath)
	if err != nil {
		return nil, nil, err
	}

	client := assistant.New(
		assistant.Config{BaseURL: opts.baseURL, APIKey: opts.apiKey, Timeout: opts.timeout},
		assistant.WithCredentials(assistant.NewStoreCredentials(store)),
		assistant.WithLogger(logger.Named("transport")),
	)
	return client, logger, nil
}

func runChat(ctx context.Context, opts *options, in io.Reader, out io.Writer) error {
	client, logger, err := buildClient(opts)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	host := newTerminalHost(out, opts.page)
	dispatcher := action.NewDispatcher(action.Handlers{
		Navigator: host,
		Modals:    host,
		Refresher: host,
		Custom:    host,
		Fallback:  host,
	}, logger.Named("actions"))

	manager := session.New(client,
		session.WithUserID(opts.userID),
		session.WithActionHandler(dispatcher),
		session.WithErrorHandler(host),
		session.WithContextProvider(host),
		session.WithLogger(logger.Named("session")),
	)
	manager.Start(ctx)

	if manager.Degraded() {
		fmt.Fprintln(out, "(chat service unreachable for session setup; using a local session)")
	}
	printed := printFrom(out, manager.Snapshot(), 0)

	fmt.Fprintln(out, "type a message, /clear to reset, /quit to exit")
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := scanner.Text()

		switch strings.TrimSpace(line) {
		case "/quit", "/exit":
			return nil
		case "/clear":
			manager.ClearChat()
			printed = printFrom(out, manager.Snapshot(), 0)
			continue
		case "/session":
			fmt.Fprintln(out, manager.SessionID())
			continue
		}

		manager.SendMessage(ctx, line)
		printed = printFrom(out, manager.Snapshot(), printed)
		host.flush()

		if ctx.Err() != nil {
			return nil
		}
	}
}

// printFrom prints messages from index start and returns the new count.
func printFrom(out io.Writer, state chat.ChatState, start int) int {
	for _, msg := range state.Messages[start:] {
		printMessage(out, msg)
	}
	return len(state.Messages)
}
