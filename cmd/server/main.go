package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "lcfs-portal",
	Short: "LCFS portal backend-for-frontend",
	Long: `Serves compliance reports, paginated lists and lookups of the LCFS API
with a shared query cache, prefix invalidation and grid layout helpers.`,
	SilenceUsage: true,
	RunE:         runServer,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", os.Getenv("APP_CONFIG_PATH"), "path to config.yaml")
}

func runServer(cmd *cobra.Command, args []string) error {
	app := NewApp(configPath)

	// Настройка и запуск
	if err := app.Start(); err != nil {
		return fmt.Errorf("ошибка запуска: %w", err)
	}

	// Ожидание сигналов завершения от ОС
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-app.Errors():
		_ = app.Shutdown()
		return fmt.Errorf("сервер упал: %w", err)
	}

	return app.Shutdown()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Фатальная ошибка: %v\n", err)
		os.Exit(1)
	}
}
