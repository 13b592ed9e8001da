package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/quantzone/zonekit/internal/cache"
	"github.com/quantzone/zonekit/internal/config"
	"github.com/quantzone/zonekit/internal/database"
	"github.com/quantzone/zonekit/internal/logging"
	"github.com/quantzone/zonekit/internal/models"
	"github.com/quantzone/zonekit/internal/services"
)

func main() {
	// Load .env if present; environment variables take precedence in viper.
	_ = godotenv.Load()

	csvPath := flag.String("input", "", "OHLCV CSV file (timestamp,open,high,low,close,volume)")
	strategy := flag.String("strategy", "zero_cross", "detection strategy name")
	column := flag.String("column", "", "signal column for zero_cross/threshold")
	series := flag.String("series", "", "series identifier for preloaded zone lookup")
	indicator := flag.String("indicator", "", "indicator to compute at Prepare (rsi, macd, stoch, ...)")
	upper := flag.Float64("upper", 70, "threshold strategy upper bound")
	lower := flag.Float64("lower", 30, "threshold strategy lower bound")
	minDuration := flag.Int("min-duration", 0, "minimum zone duration in bars (0 = config default)")
	outPrefix := flag.String("out", "result", "output file prefix (.bin and .json are appended)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, cfg.Environment)

	if *csvPath == "" {
		logger.Fatal("missing -input CSV file")
	}

	frame, err := loadCSV(*csvPath)
	if err != nil {
		logger.Fatalf("failed to load series: %v", err)
	}

	var redisClient *redis.Client
	if cfg.Cache.RedisEnabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	resultCache := cache.NewResultCache(redisClient, cfg.CacheTTL(), logger)

	provider := services.NewCinarProvider(logger)
	analyzer := services.NewUniversalAnalyzer(logger)
	pipeline := services.NewPipeline(provider, analyzer, resultCache, logger)

	builder := services.NewBuilder(pipeline).
		WithDetection(*strategy).
		WithClustering(cfg.Analysis.ClusterCount).
		WithRegression("duration", cfg.Analysis.RegressionMinSamples)

	duration := *minDuration
	if duration <= 0 {
		duration = cfg.Analysis.MinDuration
	}
	builder.WithMinDuration(duration)

	if *indicator != "" {
		builder.WithIndicator("cinar", *indicator, nil)
	}
	switch *strategy {
	case "zero_cross":
		builder.WithRule("column", *column)
	case "threshold":
		builder.WithRule("column", *column).
			WithRule("upper", *upper).
			WithRule("lower", *lower)
	case "preloaded":
		if *series == "" {
			logger.Fatal("strategy preloaded requires -series")
		}
		db, err := database.NewPostgresConnection(context.Background(), cfg.Database, logger)
		if err != nil {
			logger.Fatalf("failed to connect to database: %v", err)
		}
		defer db.Close()

		source := database.NewPostgresZoneSource(db, cfg.Database.ZoneTable, logger)
		zones, err := source.Load(context.Background(), *series)
		if err != nil {
			logger.Fatalf("failed to load zones for %s: %v", *series, err)
		}
		builder.WithRule("zones", zones)
	}

	ctx := context.Background()
	result, err := builder.Run(ctx, frame)
	if err != nil {
		logger.Fatalf("pipeline failed: %v", err)
	}

	binPath := *outPrefix + ".bin"
	jsonPath := *outPrefix + ".json"
	if err := result.SaveBinaryFile(binPath); err != nil {
		logger.Fatalf("failed to write %s: %v", binPath, err)
	}
	if err := result.SaveTextFile(jsonPath); err != nil {
		logger.Fatalf("failed to write %s: %v", jsonPath, err)
	}

	logger.Infof("detected %d zones, results written to %s and %s", len(result.Zones), binPath, jsonPath)
}

// loadCSV reads an OHLCV file with a header row into a frame.
func loadCSV(path string) (*models.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("%s: need a header row and at least one bar", path)
	}

	var bars []models.Bar
	for i, record := range records[1:] {
		if len(record) < 6 {
			return nil, fmt.Errorf("%s row %d: expected 6 fields, got %d", path, i+2, len(record))
		}
		ts, err := parseTimestamp(record[0])
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+2, err)
		}
		bar := models.Bar{Timestamp: ts}
		for j, field := range []*decimal.Decimal{&bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume} {
			value, err := decimal.NewFromString(strings.TrimSpace(record[j+1]))
			if err != nil {
				return nil, fmt.Errorf("%s row %d col %d: %w", path, i+2, j+2, err)
			}
			*field = value
		}
		bars = append(bars, bar)
	}
	return models.FromBars(bars), nil
}

func parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}
