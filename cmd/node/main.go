package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/uhyunpark/yesno/params"
	"github.com/uhyunpark/yesno/pkg/util"
)

var envFile string

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "path of a .env file (default: ./.env if present)")

	for _, mode := range []string{params.ModeAll, params.ModeEngine, params.ModeGateway, params.ModeStream} {
		rootCmd.AddCommand(modeCmd(mode))
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "node",
	Short: "Yes/no prediction market exchange",
	Long: `Runs the yes/no exchange. The process mode comes from the subcommand, or
from MODE when none is given:

  all      matching engine, REST API and websocket feed in one process
  engine   matching engine; consumes the orders topic, publishes snapshots
  gateway  REST API that forwards commands to the orders topic
  stream   websocket feed that relays the snapshot topic`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := params.LoadFromEnv(envFile)
		return start(cfg)
	},
}

func modeCmd(mode string) *cobra.Command {
	return &cobra.Command{
		Use:          mode,
		Short:        fmt.Sprintf("Run in %s mode", mode),
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := params.LoadFromEnv(envFile)
			cfg.Mode = mode
			return start(cfg)
		},
	}
}

func start(cfg params.Config) error {
	logger, err := util.NewLoggerWithFile(cfg.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	sugar.Infow("node_starting",
		"mode", cfg.Mode,
		"api_addr", cfg.API.Addr,
		"kafka_brokers", cfg.Kafka.Brokers,
		"trade_db", cfg.Storage.TradeDBPath)

	return run(cfg, sugar)
}

func requireKafka(cfg params.Config, sugar *zap.SugaredLogger) error {
	if !cfg.Kafka.Enabled() {
		sugar.Errorw("kafka_required", "mode", cfg.Mode)
		return fmt.Errorf("mode %s needs KAFKA_BROKERS", cfg.Mode)
	}
	return nil
}
