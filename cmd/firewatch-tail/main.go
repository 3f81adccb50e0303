// firewatch-tail follows the viewer stream on the terminal, or prints one
// firefighter's trajectory with --history.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	logpkg "firewatch/common/logger"
	"firewatch/internal/models"
	"firewatch/internal/viewer"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		wsURL    string
		apiURL   string
		history  string
		limit    int
		only     []string
		logLevel string
	)
	flags := pflag.NewFlagSet("firewatch-tail", pflag.ContinueOnError)
	flags.StringVar(&wsURL, "url", "ws://localhost:8080/ws", "viewer websocket endpoint")
	flags.StringVar(&apiURL, "api", "http://localhost:8080", "HTTP base URL for --history")
	flags.StringVar(&history, "history", "", "print this firefighter's trajectory and exit")
	flags.IntVar(&limit, "limit", 100, "number of history records")
	flags.StringSliceVar(&only, "type", nil, "only print these message types")
	flags.StringVar(&logLevel, "log-level", "warn", "log level")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	logger, err := logpkg.NewLogger(logLevel, "console", "")
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if history != "" {
		return printHistory(ctx, apiURL, history, limit)
	}

	filter := make(map[string]bool, len(only))
	for _, t := range only {
		filter[t] = true
	}
	client := viewer.NewClient(viewer.Options{
		URL: wsURL,
		OnState: func(s viewer.State) {
			logger.Info("Connection state", zap.String("state", s.String()))
		},
	}, func(msgType string, raw []byte) {
		if len(filter) > 0 && !filter[msgType] {
			return
		}
		fmt.Printf("%s %-16s %s\n", time.Now().Format(time.TimeOnly), msgType, raw)
	}, logger)

	return client.Run(ctx)
}

func printHistory(ctx context.Context, apiURL, firefighterID string, limit int) error {
	var resp models.HistoryResponse
	r, err := resty.New().
		SetTimeout(10*time.Second).
		SetRetryCount(2).
		R().
		SetContext(ctx).
		SetQueryParam("limit", strconv.Itoa(limit)).
		SetPathParam("id", firefighterID).
		SetResult(&resp).
		Get(apiURL + "/firefighters/{id}/history")
	if err != nil {
		return fmt.Errorf("history request failed: %w", err)
	}
	if r.IsError() {
		return fmt.Errorf("history request failed: %s", r.Status())
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
