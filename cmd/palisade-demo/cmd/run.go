package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/palisade-dev/palisade-go"
	"github.com/palisade-dev/palisade-go/internal/config"
	"github.com/palisade-dev/palisade-go/internal/telemetry"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Wrap a toy tool and fire sample calls through it",
	RunE:  runDemo,
}

func init() {
	runCmd.Flags().String("base-url", "", "Palisade Policy API base URL (overrides PALISADE_BASE_URL)")
	runCmd.Flags().String("mode", "", "strict or log (overrides PALISADE_MODE)")
	runCmd.Flags().Bool("telemetry", false, "emit Prometheus metrics and stdout OpenTelemetry spans for this run")
	viper.BindPFlag("base_url", runCmd.Flags().Lookup("base-url"))
	viper.BindPFlag("mode", runCmd.Flags().Lookup("mode"))
	viper.BindPFlag("telemetry", runCmd.Flags().Lookup("telemetry"))
	rootCmd.AddCommand(runCmd)
}

// fileWriteTool is a toy tool with the Invoke-method shape toolwrap detects.
type fileWriteTool struct{}

func (fileWriteTool) Invoke(ctx context.Context, args map[string]any) (any, error) {
	path, _ := args["path"].(string)
	return fmt.Sprintf("wrote to %s", path), nil
}

func runDemo(cmd *cobra.Command, args []string) error {
	var opts []palisade.Option
	if url := viper.GetString("base_url"); url != "" {
		opts = append(opts, palisade.WithBaseURL(url))
	}
	if mode := viper.GetString("mode"); mode != "" {
		opts = append(opts, palisade.WithMode(config.Mode(mode)))
	}

	noEtcWrites, err := palisade.NewCELValidator(
		"no-etc-writes",
		`arguments["path"].startsWith("/etc/")`,
		palisade.DecisionDeny,
		palisade.WithCELPriority(10),
		palisade.WithCELToolFilter("file_write"),
	)
	if err != nil {
		return fmt.Errorf("compiling CEL validator: %w", err)
	}
	opts = append(opts, palisade.WithValidators(noEtcWrites))

	var provider *telemetry.Provider
	if viper.GetBool("telemetry") {
		opts = append(opts, palisade.WithMetricsRegisterer(prometheus.DefaultRegisterer))
		var err error
		provider, err = telemetry.NewProvider(telemetry.TracingConfig{ServiceName: "palisade-demo"})
		if err != nil {
			return fmt.Errorf("starting telemetry provider: %w", err)
		}
		defer provider.Shutdown(context.Background())
		opts = append(opts, palisade.WithTracingProvider(provider))
	}

	client, err := palisade.New(opts...)
	if err != nil {
		return fmt.Errorf("initializing palisade client: %w", err)
	}

	tool, err := client.Wrap("file_write", fileWriteTool{})
	if err != nil {
		return fmt.Errorf("wrapping tool: %w", err)
	}

	samples := []map[string]any{
		{"path": "/tmp/notes.txt"},
		{"path": "/etc/passwd"},
	}

	for _, args := range samples {
		ctx := context.Background()
		result, err := tool.Call(ctx, args)
		switch {
		case err == nil:
			fmt.Printf("allowed: %v -> %v\n", args, result)
		case errors.Is(err, palisade.ErrToolCallDenied):
			var denied *palisade.ToolCallDeniedError
			errors.As(err, &denied)
			fmt.Printf("denied: %v -> %s\n", args, denied.ValidationResult.Reason)
		default:
			fmt.Printf("error: %v -> %v\n", args, err)
		}
	}

	stats := client.GetHistoryStats()
	fmt.Printf("total=%d allowed=%d denied=%d\n", stats.TotalCalls, stats.AllowedCalls, stats.DeniedCalls)
	return nil
}
