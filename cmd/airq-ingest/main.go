// airq-ingest runs a single ingestion refresh from the command line, the
// same fetch-merge-rewrite cycle the server exposes via POST /refresh.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"airq-forecast/internal/config"
	"airq-forecast/internal/ingest"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	app := &cli.App{
		Name:  "airq-ingest",
		Usage: "fetch PM2.5 records from the configured upstream and rebuild the dataset CSVs",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Value: 1000,
				Usage: "number of rows to request from the upstream API",
			},
			&cli.StringFlag{
				Name:  "source",
				Usage: "override the configured ingest source (cpcb, openaq)",
			},
			&cli.StringFlag{
				Name:  "api-key",
				Usage: "override the upstream API key for this run",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("ingest failed")
	}
}

func run(c *cli.Context) error {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("no .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	sourceName := cfg.IngestSource
	if s := c.String("source"); s != "" {
		sourceName = s
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	var source ingest.Source
	switch sourceName {
	case "cpcb":
		source = ingest.NewCPCBSource(httpClient, cfg.CPCBAPIKey)
	case "openaq":
		source = ingest.NewOpenAQSource(httpClient, "")
	default:
		return fmt.Errorf("unknown ingest source %q", sourceName)
	}

	var augment *ingest.Augmenter
	if cfg.GeocoderAPIKey != "" {
		augment = ingest.NewAugmenter(cfg.GeocoderAPIKey)
	}

	refresher := ingest.NewRefresher(source, augment, cfg.HistoricalCSVPath, cfg.ProcessedCSVPath)

	result, err := refresher.Run(context.Background(), c.Int("limit"), c.String("api-key"))
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
