package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"resyncd/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand(ctx))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Edit the file to point catalog_path at your track library before running randomresync jobs.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if ctx.configFlag != nil {
				path = strings.TrimSpace(*ctx.configFlag)
			}
			cfg, resolved, exists, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", resolved)
			if !exists {
				fmt.Fprintln(out, "Config file did not exist; defaults were used")
			}
			fmt.Fprintln(out, renderTable([]string{"Setting", "Value"}, configRows(cfg)))
			return nil
		},
	}
}

func configRows(cfg *config.Config) [][]string {
	return [][]string{
		{"workspace_dir", cfg.Paths.WorkspaceDir},
		{"output_dir", cfg.Paths.OutputDir},
		{"log_dir", cfg.Paths.LogDir},
		{"database_path", cfg.Paths.DatabasePath},
		{"catalog_path", orDash(cfg.Paths.CatalogPath)},
		{"cookies_file", orDash(cfg.Paths.CookiesFile)},
		{"ffmpeg", cfg.FFmpegBinary()},
		{"ffprobe", cfg.FFprobeBinary()},
		{"downloader", cfg.DownloaderBinary()},
		{"priority_workers", strconv.Itoa(cfg.Queue.PriorityWorkers)},
		{"standard_workers", strconv.Itoa(cfg.Queue.StandardWorkers)},
		{"max_output_seconds", strconv.Itoa(cfg.Limits.MaxOutputSeconds)},
		{"max_source_seconds", strconv.Itoa(cfg.Limits.MaxSourceSeconds)},
		{"max_download_seconds", strconv.Itoa(cfg.Limits.MaxDownloadSeconds)},
		{"ntfy_topic", orDash(cfg.Notifications.NtfyTopic)},
		{"log_level", cfg.Logging.Level},
		{"log_format", cfg.Logging.Format},
	}
}
