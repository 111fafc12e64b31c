package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shakram02/readonly-datasource/datasource"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "readonly-datasource",
	Short: "Read-only SQL datasource MCP server",
	Long: `Serves one SQLite, MySQL, MariaDB, StarRocks, PostgreSQL, Presto or Trino
datasource to MCP clients over stdio. Only SELECT, WITH, SHOW, DESCRIBE and
EXPLAIN statements are executed.

The datasource is configured with a YAML file (--config) or MCP_ environment
variables, for example:
  MCP_DATASOURCE_TYPE=sqlite MCP_DATASOURCE_DATABASE=./app.db readonly-datasource`,
	SilenceUsage: true,
	RunE:         runServe,
}

var pingCmd = &cobra.Command{
	Use:          "ping",
	Short:        "Check that the configured datasource answers",
	SilenceUsage: true,
	RunE:         runPing,
}

var queryCmd = &cobra.Command{
	Use:          "query <sql>",
	Short:        "Run one read-only query and print the result as JSON",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runQuery,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (YAML)")

	queryCmd.Flags().Int("page-size", 0, "rows per page (default max_rows)")
	queryCmd.Flags().Int("offset", 0, "rows to skip")

	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(queryCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// setup loads the config and builds the logger shared by every command.
func setup() (*Config, *zap.Logger, error) {
	cfg, err := LoadConfig(configFile)
	if err != nil {
		return nil, nil, err
	}
	log, err := newLogger(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server, err := NewMCPServer(ctx, cfg, log)
	if err != nil {
		log.Error("failed to create server", zap.Error(err))
		return err
	}
	defer server.Shutdown()

	log.Info("MCP server started (read-only mode)",
		zap.String("type", string(cfg.Datasource.Type)),
		zap.String("database", cfg.Datasource.Database),
		zap.Bool("strict", cfg.StrictSQL))

	if err := server.Run(os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info("server shutdown gracefully")
			return nil
		}
		log.Error("server error", zap.Error(err))
		return err
	}
	return nil
}

func runPing(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.QueryTimeout)
	defer cancel()

	f := datasource.NewFacade(append(cfg.connectorOptions(), datasource.WithLogger(log))...)
	if _, err := f.TestConnection(ctx, cfg.Datasource); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "ok")
	return nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	pageSize, _ := cmd.Flags().GetInt("page-size")
	if pageSize <= 0 {
		pageSize = cfg.MaxRows
	}
	offset, _ := cmd.Flags().GetInt("offset")

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.QueryTimeout)
	defer cancel()

	f := datasource.NewFacade(append(cfg.connectorOptions(), datasource.WithLogger(log))...)
	res, err := f.ExecuteQuery(ctx, cfg.Datasource, args[0], nil, &datasource.Page{Size: pageSize, Offset: offset})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
