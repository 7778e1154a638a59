package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"weathertrader/config"
	"weathertrader/internal/engine"
	"weathertrader/internal/ingest"
	"weathertrader/internal/polymarket"
	"weathertrader/internal/repository"
	"weathertrader/internal/weatherapi"
	"weathertrader/strategies/weather"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	weatherCSV := flag.String("ingest-weather", "", "ingest a weather CSV and exit")
	marketCSV := flag.String("ingest-markets", "", "ingest a market CSV and exit")
	fetchWeather := flag.Bool("fetch-weather", false, "backfill weather history from the archive API and exit")
	fetchMarkets := flag.Bool("fetch-markets", false, "backfill market history from the Polymarket CLOB and exit")
	optimize := flag.Bool("optimize", false, "run a parameter sweep instead of a single backtest")
	sweepSize := flag.Int("sweep-size", 50, "random-search evaluations per sweep")
	sweepSeed := flag.Int64("sweep-seed", 1, "random-search seed")
	tradesOut := flag.String("trades-csv", "", "write the trade log to a CSV file")
	jsonOut := flag.String("json", "", "write the full result as JSON to a file")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	setupLogger(cfg.Log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := repository.NewDatabase(cfg.Data.DSN)
	if err != nil {
		slog.Error("failed to open store", "err", err, "dsn", cfg.Data.DSN)
		os.Exit(1)
	}
	defer db.Close()

	if *weatherCSV != "" || *marketCSV != "" {
		runIngest(ctx, db, *weatherCSV, *marketCSV)
		return
	}

	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		slog.Error("invalid backtest config", "err", err)
		os.Exit(1)
	}

	if *fetchWeather || *fetchMarkets {
		runFetch(ctx, db, cfg, engineCfg, *fetchWeather, *fetchMarkets)
		return
	}

	provider := repository.NewSnapshotProvider(db, engineCfg.Frequency, cfg.MaxSkew(), cfg.Data.Lookback)

	if *optimize {
		runSweep(ctx, provider, engineCfg, cfg, *sweepSize, *sweepSeed)
		return
	}

	runBacktest(ctx, provider, engineCfg, cfg, *tradesOut, *jsonOut)
}

func runIngest(ctx context.Context, db *repository.Database, weatherPath, marketPath string) {
	if weatherPath != "" {
		report, err := ingest.WeatherCSV(ctx, db, weatherPath)
		if err != nil {
			slog.Error("weather ingest failed", "err", err, "path", weatherPath)
			os.Exit(1)
		}
		slog.Info("weather ingest complete", "rows", report.Rows, "loaded", report.Loaded, "skipped", report.Skipped)
	}
	if marketPath != "" {
		report, err := ingest.MarketCSV(ctx, db, marketPath)
		if err != nil {
			slog.Error("market ingest failed", "err", err, "path", marketPath)
			os.Exit(1)
		}
		slog.Info("market ingest complete", "rows", report.Rows, "loaded", report.Loaded, "skipped", report.Skipped)
	}
}

// runFetch backfills the configured sources over the backtest window.
func runFetch(ctx context.Context, db *repository.Database, cfg *config.Config, engineCfg engine.Config, fetchWeather, fetchMarkets bool) {
	if fetchWeather {
		if len(cfg.Sources.Locations) == 0 {
			slog.Error("no weather locations configured under sources.locations")
			os.Exit(1)
		}
		locations := make([]ingest.Location, 0, len(cfg.Sources.Locations))
		for _, l := range cfg.Sources.Locations {
			locations = append(locations, ingest.Location{Name: l.Name, Latitude: l.Latitude, Longitude: l.Longitude})
		}

		client := weatherapi.NewClient(cfg.Sources.WeatherBase)
		report, err := ingest.WeatherHistory(ctx, db, client, locations, engineCfg.Start, engineCfg.End)
		if err != nil {
			slog.Error("weather backfill failed", "err", err)
			os.Exit(1)
		}
		slog.Info("weather backfill complete", "rows", report.Rows, "loaded", report.Loaded, "skipped", report.Skipped)
	}

	if fetchMarkets {
		if len(cfg.Sources.Markets) == 0 {
			slog.Error("no market tokens configured under sources.markets")
			os.Exit(1)
		}
		sources := make([]ingest.MarketSource, 0, len(cfg.Sources.Markets))
		for _, m := range cfg.Sources.Markets {
			sources = append(sources, ingest.MarketSource{MarketID: m.MarketID, Outcome: m.Outcome, TokenID: m.TokenID})
		}

		client := polymarket.NewClient(cfg.Sources.PolymarketBase)
		report, err := ingest.MarketHistory(ctx, db, client, sources, engineCfg.Start, engineCfg.End, cfg.Sources.FidelityMinutes)
		if err != nil {
			slog.Error("market backfill failed", "err", err)
			os.Exit(1)
		}
		slog.Info("market backfill complete", "rows", report.Rows, "loaded", report.Loaded, "skipped", report.Skipped)
	}
}

func runBacktest(ctx context.Context, provider engine.DataProvider, engineCfg engine.Config, cfg *config.Config, tradesOut, jsonOut string) {
	strat, err := weather.New(cfg.Strategy.Name, cfg.Strategy.Location, cfg.Strategy.Params)
	if err != nil {
		slog.Error("failed to build strategy", "err", err, "name", cfg.Strategy.Name)
		os.Exit(1)
	}

	eng := engine.NewEngine(provider, engine.WithProgress())
	result, err := eng.Run(ctx, strat, engineCfg)
	if err != nil {
		slog.Error("backtest failed", "err", err, "strategy", strat.Name())
		os.Exit(1)
	}

	engine.PrintReport(os.Stdout, result)
	engine.PrintTrades(os.Stdout, result)

	if tradesOut != "" {
		if err := engine.WriteTradesCSVFile(tradesOut, result); err != nil {
			slog.Error("failed to write trades CSV", "err", err, "path", tradesOut)
			os.Exit(1)
		}
		slog.Info("trade log written", "path", tradesOut)
	}
	if jsonOut != "" {
		f, err := os.Create(jsonOut)
		if err != nil {
			slog.Error("failed to create result file", "err", err, "path", jsonOut)
			os.Exit(1)
		}
		defer f.Close()
		if err := engine.WriteResultJSON(f, result); err != nil {
			slog.Error("failed to write result JSON", "err", err, "path", jsonOut)
			os.Exit(1)
		}
		slog.Info("result written", "path", jsonOut)
	}
}

func runSweep(ctx context.Context, provider engine.DataProvider, engineCfg engine.Config, cfg *config.Config, n int, seed int64) {
	specs, ok := sweepSpecs(cfg.Strategy.Name)
	if !ok {
		slog.Error("no sweep space defined for strategy", "name", cfg.Strategy.Name)
		os.Exit(1)
	}

	eng := engine.NewEngine(provider)
	opt := engine.NewOptimizer(eng, engineCfg, engine.SharpeObjective, 0)

	sweep, err := opt.RandomSearch(ctx, specs, weather.Factory(cfg.Strategy.Name, cfg.Strategy.Location), n, seed)
	if err != nil {
		slog.Error("sweep failed", "err", err)
		os.Exit(1)
	}

	slog.Info("best parameters found",
		"score", sweep.Best.Score,
		"params", paramsString(sweep.Best.Params),
		"failures", sweep.Failures,
	)
	engine.PrintReport(os.Stdout, sweep.Best.Result)
}

// sweepSpecs defines the search space per strategy family.
func sweepSpecs(name string) ([]engine.ParamSpec, bool) {
	switch name {
	case "temperature":
		return []engine.ParamSpec{
			{Name: "hot_threshold_c", Min: 20, Max: 38},
			{Name: "cold_threshold_c", Min: -10, Max: 10},
			{Name: "scale_c", Min: 2, Max: 20},
			{Name: "min_strength", Min: 0, Max: 0.5},
		}, true
	case "precipitation":
		return []engine.ParamSpec{
			{Name: "wet_threshold_mm", Min: 1, Max: 20},
			{Name: "dry_exit_mm", Min: 0, Max: 0.9},
			{Name: "scale_mm", Min: 5, Max: 50},
		}, true
	case "wind":
		return []engine.ParamSpec{
			{Name: "gale_threshold_kph", Min: 40, Max: 90},
			{Name: "calm_exit_kph", Min: 5, Max: 30},
			{Name: "scale_kph", Min: 10, Max: 80},
		}, true
	case "pattern":
		return []engine.ParamSpec{
			{Name: "lookback", Min: 6, Max: 72, Int: true},
			{Name: "entry_score", Min: 1, Max: 3},
			{Name: "exit_score", Min: 0.1, Max: 0.9},
		}, true
	}
	return nil, false
}

func paramsString(params map[string]float64) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, key := range keys {
		if i > 0 {
			sb.WriteString(" ")
		}
		fmt.Fprintf(&sb, "%s=%.4g", key, params[key])
	}
	return sb.String()
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
