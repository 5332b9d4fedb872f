package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/seqops/curator/pkg/curator/config"
	"github.com/seqops/curator/pkg/curator/logging"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "curator",
		Short: "Curate and archive sequencing project directories",
		Long: `Curator scans sequencing project directories, maintains a manifest of
their contents, and uploads new or changed files to archival storage.

A scan classifies every file, deletes junk, recompresses oversized
plain-text sequence files, and reconciles against the prior manifest so
unchanged files are never rehashed. An upload diffs the manifest against
the remote bucket and transfers only what is missing or stale.

Examples:
  curator scan /data/projects/PX042       # Scan and write the manifest
  curator upload /data/projects/PX042     # Upload per the manifest
  curator sync /data/projects/PX042       # Scan then upload
  curator archive /data/projects/PX042    # Bundle archivable files
  curator project list                    # Show registered projects`,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/curator/config.yaml)")
	rootCmd.PersistentFlags().StringP("bucket", "b", "", "destination bucket")
	rootCmd.PersistentFlags().StringP("prefix", "p", "", "destination key prefix (default: project name)")
	rootCmd.PersistentFlags().StringP("output", "o", "pretty", "output format (pretty, plain, json, yaml)")
	rootCmd.PersistentFlags().BoolP("dry-run", "d", false, "classify and plan without mutating anything remote")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "minimal output")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug output")

	// Bind flags to viper
	_ = viper.BindPFlag("bucket", rootCmd.PersistentFlags().Lookup("bucket"))
	_ = viper.BindPFlag("prefix", rootCmd.PersistentFlags().Lookup("prefix"))
	_ = viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	_ = viper.BindPFlag("dry_run", rootCmd.PersistentFlags().Lookup("dry-run"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig reads in config file and environment variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")

		if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
			viper.AddConfigPath(filepath.Join(xdgConfigHome, "curator"))
		}

		homeDir, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(homeDir, ".config", "curator"))
		}
	}

	viper.SetEnvPrefix("CURATOR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("scan.large_file_size", config.DefaultLargeFileSize)
	viper.SetDefault("scan.transcode_size", config.DefaultTranscodeSize)
	viper.SetDefault("scan.transcode", true)
	viper.SetDefault("upload.workers", config.DefaultWorkers)
	viper.SetDefault("upload.mode", config.DefaultTransferMode)
	viper.SetDefault("upload.transfer_binary", config.DefaultTransferBinary)
	viper.SetDefault("upload.storage_class", config.DefaultStorageClass)
	viper.SetDefault("logging.level", "info")

	// Read config file (ignore if not found)
	_ = viper.ReadInConfig()
}

// initLogging wires the shared log file, mirroring to the console when
// verbose is set.
func initLogging() error {
	cfg := logging.Config{
		Level:    viper.GetString("logging.level"),
		Path:     viper.GetString("logging.path"),
		Rotation: logging.DefaultRotationConfig(),
	}
	if getVerbose() {
		cfg.Level = "debug"
		cfg.ConsoleLevel = "debug"
	}
	return logging.Init(cfg)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// getVerbose returns true if verbose mode is enabled.
func getVerbose() bool {
	return viper.GetBool("verbose")
}

// getQuiet returns true if quiet mode is enabled.
func getQuiet() bool {
	return viper.GetBool("quiet")
}

// printInfo prints a message if quiet mode is not enabled.
func printInfo(format string, args ...interface{}) {
	if !getQuiet() {
		fmt.Printf(format+"\n", args...)
	}
}

// printError prints an error message to stderr.
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
