package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"milletsmon/internal/backend"
	"milletsmon/pkg/config"
	pkglogger "milletsmon/pkg/logger"
)

var (
	backendURL string
	token      string
	timeout    time.Duration
	verbose    bool

	logger *zap.Logger
)

// rootCmd milletsctl 直接调用后端，不经过门户缓存
var rootCmd = &cobra.Command{
	Use:   "milletsctl",
	Short: "Admin CLI for the millets monitoring backend",
	Long: `milletsctl talks to the monitoring backend directly.

Set MILLETS_BACKEND_URL and MILLETS_TOKEN to avoid repeating flags:
  milletsctl login --email admin@example.in --password ...
  export MILLETS_TOKEN=<printed token>
  milletsctl projects
  milletsctl report --district Koraput > koraput.csv`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger = zap.NewNop()
		if verbose {
			logger = pkglogger.NewDevelopment()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&backendURL, "backend", envOr("MILLETS_BACKEND_URL", "http://localhost:5000"), "Backend base URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("MILLETS_TOKEN"), "Backend bearer token")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", time.Minute, "Operation timeout")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Account email (required)")
	loginCmd.Flags().StringVar(&loginPassword, "password", os.Getenv("MILLETS_PASSWORD"), "Account password")
	loginCmd.MarkFlagRequired("email")

	reportCmd.Flags().StringVar(&reportTitle, "title", "Progress report", "Report title")
	reportCmd.Flags().StringVar(&reportDistrict, "district", "", "Only include this district")
	reportCmd.Flags().StringVar(&reportKind, "kind", "", "Only include this activity kind")
	reportCmd.Flags().StringVar(&reportFrom, "from", "", "Start date (YYYY-MM-DD)")
	reportCmd.Flags().StringVar(&reportTo, "to", "", "End date (YYYY-MM-DD)")

	uploadCmd.Flags().StringVar(&uploadFolder, "folder", "uploads", "Target folder")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(projectsCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(rmFileCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newClient() *backend.Client {
	return backend.NewClient(config.BackendConfig{BaseURL: backendURL, Timeout: timeout}, logger)
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), timeout)
}

func requireToken() error {
	if token == "" {
		return fmt.Errorf("no token: run 'milletsctl login' and set MILLETS_TOKEN or pass --token")
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
