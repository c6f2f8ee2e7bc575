// Command trinity runs the assistant as an HTTP service or an interactive console.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/oceanbase/trinity-go/pkg/clarify"
	"github.com/oceanbase/trinity-go/pkg/core"
	"github.com/oceanbase/trinity-go/pkg/logger"
	"github.com/oceanbase/trinity-go/pkg/server"
)

// Version information (set at build time)
var version = "dev"

func main() {
	var (
		configPath string
		uid        string
	)

	rootCmd := &cobra.Command{
		Use:           "trinity",
		Short:         "Trinity - a personal assistant with a learning knowledge base",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (.json, .yaml or .env); defaults to environment")
	rootCmd.PersistentFlags().StringVarP(&uid, "uid", "u", "console", "user id for console commands")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the assistant over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the assistant on the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, closeFn, err := openClient(configPath)
			if err != nil {
				return err
			}
			defer closeFn()
			return chat(cmd.Context(), client, uid, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	askCmd := &cobra.Command{
		Use:   "ask [utterance]",
		Short: "Dispatch a single utterance",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, closeFn, err := openClient(configPath)
			if err != nil {
				return err
			}
			defer closeFn()

			resp, err := client.Dispatch(cmd.Context(), strings.Join(args, " "), uid)
			if err != nil {
				return err
			}
			printResponse(cmd.OutOrStdout(), resp)
			return nil
		},
	}

	teachCmd := &cobra.Command{
		Use:   "teach [topic] [text]",
		Short: "Store knowledge for a topic",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, closeFn, err := openClient(configPath)
			if err != nil {
				return err
			}
			defer closeFn()

			msg, err := client.Teach(cmd.Context(), args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}

	var greetName, greetLocation string
	greetCmd := &cobra.Command{
		Use:   "greet",
		Short: "Greet the user, saving name and location when given",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, closeFn, err := openClient(configPath)
			if err != nil {
				return err
			}
			defer closeFn()

			msg, err := client.Greet(cmd.Context(), uid, core.WithUsername(greetName), core.WithLocation(greetLocation))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
	greetCmd.Flags().StringVar(&greetName, "name", "", "username to save")
	greetCmd.Flags().StringVar(&greetLocation, "location", "", "location to save")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show profile and usage statistics as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, closeFn, err := openClient(configPath)
			if err != nil {
				return err
			}
			defer closeFn()

			stats, err := client.Statistics(cmd.Context(), uid)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		},
	}

	recommendCmd := &cobra.Command{
		Use:   "recommend",
		Short: "Show song, app and reminder recommendations",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, closeFn, err := openClient(configPath)
			if err != nil {
				return err
			}
			defer closeFn()

			rec, err := client.Recommend(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, rec.Song)
			fmt.Fprintln(out, rec.App)
			fmt.Fprintln(out, rec.Reminders)
			return nil
		},
	}

	rootCmd.AddCommand(serveCmd, chatCmd, askCmd, teachCmd, greetCmd, statsCmd, recommendCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads path by extension, or the environment (with a discovered
// .env file) when path is empty.
func loadConfig(path string) (*core.Config, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case "":
		if path != "" {
			return core.LoadConfigFromEnvFile(path)
		}
		if envPath, ok := core.FindEnvFile(); ok {
			return core.LoadConfigFromEnvFile(envPath)
		}
		return core.LoadConfigFromEnv()
	case ".json":
		return core.LoadConfigFromJSON(path)
	case ".yaml", ".yml":
		return core.LoadConfigFromYAML(path)
	default:
		return core.LoadConfigFromEnvFile(path)
	}
}

// openClient builds a client for a console command. Logs go to stderr so they
// never interleave with command output.
func openClient(configPath string) (*core.Client, func(), error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Log.Output == "" || cfg.Log.Output == "stdout" {
		cfg.Log.Output = "stderr"
	}
	log, closeLog, err := logger.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	client, err := core.NewClient(cfg, core.WithLogger(log))
	if err != nil {
		_ = closeLog()
		return nil, nil, err
	}
	return client, func() {
		if err := client.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close client")
		}
		_ = closeLog()
	}, nil
}

func serve(ctx context.Context, cfg *core.Config) error {
	log, closeLog, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer closeLog()

	client, err := core.NewClient(cfg, core.WithLogger(log))
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close client")
		}
	}()

	scheduler := cron.New()
	if mem, ok := client.ClarifyStore().(*clarify.Memory); ok && cfg.Clarify.SweepSpec != "" {
		if err := mem.Schedule(scheduler, cfg.Clarify.SweepSpec); err != nil {
			return fmt.Errorf("invalid clarify sweep spec %q: %w", cfg.Clarify.SweepSpec, err)
		}
	}
	scheduler.Start()
	defer func() { <-scheduler.Stop().Done() }()

	addr := cfg.HTTP.Addr
	if addr == "" {
		addr = ":8080"
	}
	srv := server.New(addr, client, cfg.Auth.Tokens, log)
	if len(cfg.Auth.Tokens) == 0 {
		log.Warn().Msg("no auth tokens configured; every /v1 request will be rejected")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// chat runs a read-dispatch-print loop. A response needing clarification
// prompts for the missing text on the next line; an empty line declines.
func chat(ctx context.Context, client *core.Client, uid string, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	prompt := func(p string) (string, bool) {
		fmt.Fprint(out, p)
		if !scanner.Scan() {
			return "", false
		}
		return strings.TrimSpace(scanner.Text()), true
	}

	fmt.Fprintln(out, "Trinity is listening. Type 'exit' to quit.")
	for {
		line, ok := prompt("> ")
		if !ok {
			return scanner.Err()
		}
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}

		resp, err := client.Dispatch(ctx, line, uid)
		for err == nil && resp.NeedsClarification != nil {
			printResponse(out, resp)
			topic := resp.NeedsClarification.Topic
			text, ok := prompt(fmt.Sprintf("Tell me about '%s' (empty to skip): ", topic))
			if !ok {
				return scanner.Err()
			}
			resp, err = client.RecordFeedback(ctx, uid, topic, text)
		}
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}
		printResponse(out, resp)
	}
}

func printResponse(out io.Writer, resp *core.Response) {
	fmt.Fprintln(out, resp.Text)
	if resp.Delta != 0 {
		fmt.Fprintf(out, "  (reward %+d, score %d)\n", resp.Delta, resp.Score)
	}
}
