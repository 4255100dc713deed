// Command chat runs the concierge against the configured reasoning service from
// a terminal. Bookings live in memory and vanish on exit.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/joho/godotenv"

	"github.com/wolfman30/medspa-concierge/cmd/mainconfig"
	"github.com/wolfman30/medspa-concierge/internal/agent"
	"github.com/wolfman30/medspa-concierge/internal/appointments"
	"github.com/wolfman30/medspa-concierge/internal/availability"
	appconfig "github.com/wolfman30/medspa-concierge/internal/config"
	"github.com/wolfman30/medspa-concierge/internal/llm"
	"github.com/wolfman30/medspa-concierge/internal/policy"
	"github.com/wolfman30/medspa-concierge/internal/tools"
	"github.com/wolfman30/medspa-concierge/pkg/logging"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found, using environment variables")
	}
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	ctx := context.Background()
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "aws config: %v\n", err)
		os.Exit(1)
	}
	s, err := newSession(ctx, cfg, awsCfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "setup: %v\n", err)
		os.Exit(1)
	}
	defer s.close()

	from := os.Getenv("CHAT_FROM")
	if from == "" {
		from = "+15550000000"
	}
	fmt.Printf("concierge chat (%s). Type /appointments to list bookings, /quit to exit.\n", cfg.LLMProvider)
	if err := s.repl(ctx, os.Stdin, os.Stdout, from); err != nil {
		fmt.Fprintf(os.Stderr, "read: %v\n", err)
		os.Exit(1)
	}
}

type session struct {
	loop  *agent.Loop
	store *appointments.Store
	close func()
}

func newSession(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (*session, error) {
	client, closer, err := mainconfig.NewLLMClient(ctx, cfg, awsCfg, logger)
	if err != nil {
		return nil, err
	}
	s := buildSession(client, cfg, logger)
	s.close = closer
	return s, nil
}

func buildSession(client llm.Client, cfg *appconfig.Config, logger *logging.Logger, opts ...agent.Option) *session {
	policies := policy.NewStore(nil, cfg.PolicyKey, logger)
	store := appointments.NewStore(
		appointments.WithPlanner(availability.NewPlanner(policies)),
		appointments.WithProviderResolver(policy.ProviderResolver(policies)),
		appointments.WithLogger(logger),
	)
	opts = append([]agent.Option{
		agent.WithMaxIterations(cfg.LLMMaxIterations),
		agent.WithCallTimeout(cfg.LLMCallTimeout),
		agent.WithMaxTokens(cfg.LLMMaxTokens),
	}, opts...)
	loop := agent.NewLoop(client, tools.NewDispatcher(store, logger), policies, logger, opts...)
	return &session{loop: loop, store: store, close: func() {}}
}

func (s *session) repl(ctx context.Context, in io.Reader, w io.Writer, from string) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(w, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/appointments":
			s.printAppointments(ctx, w)
			continue
		}

		start := time.Now()
		out := s.loop.Run(ctx, line, from)
		fmt.Fprintln(w, out.Reply)
		fmt.Fprintf(w, "  [%s, %d round trips, %d tool calls, %v]\n",
			out.State, out.Iterations, out.ToolCalls, time.Since(start).Round(time.Millisecond))
		if out.Err != nil {
			fmt.Fprintf(w, "  [error: %v]\n", out.Err)
		}
	}
}

func (s *session) printAppointments(ctx context.Context, w io.Writer) {
	list, err := s.store.ListUpcoming(ctx)
	if err != nil {
		fmt.Fprintf(w, "  [error: %v]\n", err)
		return
	}
	if len(list) == 0 {
		fmt.Fprintln(w, "  no upcoming appointments")
		return
	}
	for _, a := range list {
		fmt.Fprintf(w, "  %s  %s  %s  %s  %s\n", a.ID, a.Start.Format(time.RFC3339), a.Provider, a.Service, a.Status)
	}
}
