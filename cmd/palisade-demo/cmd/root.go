// Package cmd provides the palisade-demo CLI commands.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "palisade-demo",
	Short: "Demonstrates the palisade guardrail SDK against a toy tool",
	Long: `palisade-demo wraps a toy "file_write" tool with a palisade.Client and
fires two sample calls, printing whether each was allowed or denied. A call
the server holds for human approval is printed once the approval resolves.

Configuration is read from palisade-demo.yaml in the current directory,
$HOME/.palisade/, or /etc/palisade/, and can be overridden with PALISADE_-
prefixed environment variables (e.g. PALISADE_BASE_URL=http://localhost:8080).`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./palisade-demo.yaml)")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("palisade-demo")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home + "/.palisade")
		}
		viper.AddConfigPath("/etc/palisade")
	}

	viper.SetEnvPrefix("PALISADE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	_ = viper.ReadInConfig()
}
