// Command sentinel is the CLI entrypoint for the signal detection engine,
// grounded on the teacher's cmd/cryptorun/main.go cobra root + zerolog
// console-writer setup. Unlike the teacher, there is no interactive menu —
// every operation is a subcommand, since spec §6's request surface is
// meant to be mounted behind a transport, not driven from a TTY.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/sentinel/internal/backtest"
	"github.com/sawpanic/sentinel/internal/config"
	"github.com/sawpanic/sentinel/internal/micro"
	"github.com/sawpanic/sentinel/internal/micro/wsfeed"
	"github.com/sawpanic/sentinel/internal/service"
)

const version = "v0.1.0"

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	var configPath string

	rootCmd := &cobra.Command{
		Use:     "sentinel",
		Short:   "SOL/USD 5m swing-trade signal detection engine",
		Version: version,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (defaults to built-in defaults)")

	scanCmd := &cobra.Command{
		Use:   "scan --csv <path>",
		Short: "Load a CSV bar series and print the latest confirmed signal",
		RunE: func(cmd *cobra.Command, args []string) error {
			csvPath, _ := cmd.Flags().GetString("csv")
			return runScan(configPath, csvPath)
		},
	}
	scanCmd.Flags().String("csv", "", "CSV bar file (time,open,high,low,close,Volume)")
	mustMarkRequired(scanCmd, "csv")

	backtestCmd := &cobra.Command{
		Use:   "backtest --csv <path>",
		Short: "Replay a CSV bar series through the backtest simulator",
		RunE: func(cmd *cobra.Command, args []string) error {
			csvPath, _ := cmd.Flags().GetString("csv")
			return runBacktest(configPath, csvPath)
		},
	}
	backtestCmd.Flags().String("csv", "", "CSV bar file (time,open,high,low,close,Volume)")
	mustMarkRequired(backtestCmd, "csv")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "Run the live ingest/detect pipeline until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLive(configPath)
		},
	}

	streamCmd := &cobra.Command{
		Use:   "stream --url <ws-url>",
		Short: "Connect the illustrative WebSocket feed adapter and print microstructure snapshots",
		Long:  "Demonstrates the reconnect/backoff/circuit-breaker wiring a real feed would use. Not production exchange connectivity.",
		RunE: func(cmd *cobra.Command, args []string) error {
			url, _ := cmd.Flags().GetString("url")
			return runStream(configPath, url)
		},
	}
	streamCmd.Flags().String("url", "", "venue WebSocket URL")
	mustMarkRequired(streamCmd, "url")

	metricsCmd := &cobra.Command{
		Use:   "metrics",
		Short: "Expose a bare Prometheus /metrics endpoint",
		Long:  "Serves only /metrics — no other transport for spec §6's request surface lives here.",
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			return runMetrics(addr)
		},
	}
	metricsCmd.Flags().String("addr", ":9090", "listen address")

	rootCmd.AddCommand(scanCmd, backtestCmd, liveCmd, streamCmd, metricsCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func mustMarkRequired(cmd *cobra.Command, flag string) {
	if err := cmd.MarkFlagRequired(flag); err != nil {
		panic(err)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func loadCSVService(cfgPath, csvPath string) (*service.Service, *config.Config, error) {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return nil, nil, err
	}
	data, err := os.ReadFile(csvPath)
	if err != nil {
		return nil, nil, fmt.Errorf("reading csv: %w", err)
	}

	svc := service.New(cfg, nil, log.Logger)
	res, err := svc.UploadCSV(data)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing csv: %w", err)
	}
	if !res.Success {
		return nil, nil, fmt.Errorf("no valid rows loaded: %s", res.Message)
	}
	log.Info().Int("rows", res.Rows).Msg("csv loaded")
	return svc, cfg, nil
}

func runScan(cfgPath, csvPath string) error {
	svc, _, err := loadCSVService(cfgPath, csvPath)
	if err != nil {
		return err
	}

	sig, err := svc.SignalsLatest(service.SignalParams{})
	if err != nil {
		fmt.Println(`{"message":"no signal"}`)
		return nil
	}
	return printJSON(sig)
}

func runBacktest(cfgPath, csvPath string) error {
	svc, cfg, err := loadCSVService(cfgPath, csvPath)
	if err != nil {
		return err
	}

	btCfg := backtest.Config{
		InitialCapital: cfg.InitialCapital,
		RiskPerTrade:   cfg.RiskPerTrade,
		TP1R:           cfg.TP1R, TP2R: cfg.TP2R, TP3R: cfg.TP3R,
		TP1Scale: cfg.TP1Scale, TP2Scale: cfg.TP2Scale, TP3Scale: cfg.TP3Scale,
		TrailAfterTP: cfg.TrailAfterTP, BarTimeout: cfg.BarTimeout,
		FeeBufferBps: cfg.FeeBufferBps, BarsPerYear: int(cfg.BarsPerYear),
	}

	res, err := svc.Backtest(btCfg)
	if err != nil {
		return fmt.Errorf("backtest: %w", err)
	}
	return printJSON(res)
}

func runLive(cfgPath string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}
	svc := service.New(cfg, nil, log.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := svc.LiveStart(ctx); err != nil {
		return fmt.Errorf("starting live pipeline: %w", err)
	}
	log.Info().Str("symbol", cfg.Symbol).Msg("live pipeline running, ctrl-c to stop")

	<-ctx.Done()
	log.Info().Msg("stopping live pipeline")

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return svc.LiveStop(stopCtx)
}

func runStream(cfgPath, url string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}

	stream := micro.New(cfg.DepthLevels, cfg.StalenessMs)
	feed := wsfeed.New(cfg.Symbol, url, stream, log.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				snap := stream.Snapshot(time.Now().UnixMicro())
				if snap.Available {
					printJSON(snap)
				}
			}
		}
	}()

	err = feed.Run(ctx)
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func runMetrics(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	log.Info().Str("addr", addr).Msg("metrics server listening")
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	return srv.ListenAndServe()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
