package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raykavin/backreplay"
	"github.com/raykavin/backreplay/internal/config"
	"github.com/raykavin/backreplay/pkg/core"
	"github.com/raykavin/backreplay/pkg/plot"
	"github.com/raykavin/backreplay/pkg/result"
	"github.com/raykavin/backreplay/pkg/storage"
	"github.com/spf13/cobra"
	str2duration "github.com/xhit/go-str2duration/v2"
)

// Command line flags
var (
	configFile string
	inputFile  string
	runID      string

	// Replay command flags
	port      int
	speed     string
	debugMode bool

	// Import command flags
	csvFile         string
	symbol          string
	timeframe       string
	startingBalance float64
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "backreplay",
		Short:   "Backtest playback and inspection",
		Version: "1.0.0",
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file path (e.g. ./backreplay.yaml)")

	rootCmd.AddCommand(buildReplayCmd())
	rootCmd.AddCommand(buildSummaryCmd())
	rootCmd.AddCommand(buildImportCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildReplayCmd() *cobra.Command {
	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Serve an interactive playback of a backtest run",
		RunE:  runReplay,
	}

	replayCmd.Flags().StringVarP(&inputFile, "file", "f", "", "Result JSON file to replay")
	replayCmd.Flags().StringVarP(&runID, "id", "i", "", "Stored run id to replay")
	replayCmd.Flags().IntVarP(&port, "port", "p", 0, "Chart server port")
	replayCmd.Flags().StringVarP(&speed, "speed", "s", "", "Playback interval (e.g. 250ms, 1s)")
	replayCmd.Flags().BoolVarP(&debugMode, "debug", "d", false, "Serve chart assets from disk")

	return replayCmd
}

func buildSummaryCmd() *cobra.Command {
	summaryCmd := &cobra.Command{
		Use:   "summary",
		Short: "Print trade statistics for a run",
		RunE:  runSummary,
	}

	summaryCmd.Flags().StringVarP(&inputFile, "file", "f", "", "Result JSON file")
	summaryCmd.Flags().StringVarP(&runID, "id", "i", "", "Stored run id")

	return summaryCmd
}

func buildImportCmd() *cobra.Command {
	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Import a candle CSV as a stored run",
		RunE:  runImport,
	}

	importCmd.Flags().StringVarP(&csvFile, "csv", "f", "", "Candle CSV file path")
	importCmd.Flags().StringVarP(&symbol, "symbol", "s", "", "Symbol (e.g. BTCUSDT)")
	importCmd.Flags().StringVarP(&timeframe, "timeframe", "t", "", "Timeframe (e.g. 1h)")
	importCmd.Flags().Float64VarP(&startingBalance, "balance", "b", 0, "Starting balance")

	importCmd.MarkFlagRequired("csv")
	importCmd.MarkFlagRequired("symbol")
	importCmd.MarkFlagRequired("timeframe")

	return importCmd
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	chartOptions := []plot.Option{plot.WithPort(cfg.Port)}
	if cfg.Debug {
		chartOptions = append(chartOptions, plot.WithDebug())
	}

	session, err := newSession(cfg,
		backreplay.WithSpeed(cfg.Speed),
		backreplay.WithChartOptions(chartOptions...),
	)
	if err != nil {
		return err
	}

	if err := loadInput(session); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backreplay.DefaultLog.Infof("chart server listening on http://localhost:%d", cfg.Port)
	return session.Run(ctx)
}

func runSummary(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	session, err := newSession(cfg)
	if err != nil {
		return err
	}

	if err := loadInput(session); err != nil {
		return err
	}

	session.Summary()
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	candles, err := result.CandlesFromCSV(backreplay.DefaultLog, csvFile, symbol, timeframe)
	if err != nil {
		return err
	}

	store, err := storage.FromFile(cfg.StoragePath)
	if err != nil {
		return err
	}

	balance := startingBalance
	if balance == 0 {
		balance = cfg.StartingBalance
	}

	run := &core.Result{
		Symbol:          symbol,
		Timeframe:       timeframe,
		StartingBalance: balance,
		Candles:         candles,
	}
	if err := store.SaveResult(run); err != nil {
		return err
	}

	backreplay.DefaultLog.Infof("imported %d candles as run %s", len(candles), run.ID)
	return nil
}

// loadConfig merges the config file, environment and command line flags.
// Flags win over everything else.
func loadConfig() (*config.AppConfig, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}

	if port > 0 {
		cfg.Port = port
	}
	if debugMode {
		cfg.Debug = true
	}
	if speed != "" {
		parsed, err := str2duration.ParseDuration(speed)
		if err != nil {
			return nil, err
		}
		cfg.Speed = parsed
	}
	if cfg.Speed <= 0 {
		cfg.Speed = 250 * time.Millisecond
	}

	return cfg, nil
}

func newSession(cfg *config.AppConfig, options ...backreplay.Option) (*backreplay.Session, error) {
	store, err := storage.FromFile(cfg.StoragePath)
	if err != nil {
		return nil, err
	}

	options = append(options,
		backreplay.WithStorage(store),
		backreplay.WithStartingBalance(cfg.StartingBalance),
	)
	return backreplay.NewSession(options...)
}

// loadInput loads the run named by --file or --id into the session
func loadInput(session *backreplay.Session) error {
	switch {
	case inputFile != "":
		run, err := result.FromJSONFile(backreplay.DefaultLog, inputFile)
		if err != nil {
			return err
		}
		session.SetResult(run)
		return nil
	case runID != "":
		return session.LoadResult(runID)
	default:
		return fmt.Errorf("either --file or --id is required")
	}
}
