package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ilexum-group/iosextract/internal/acquisition"
	"github.com/ilexum-group/iosextract/internal/config"
	"github.com/ilexum-group/iosextract/internal/utils"
)

type rootFlags struct {
	configPath    string
	dryRun        bool
	preserveNames bool
	logLevel      string
	notesCommand  string
}

func newRootCommand() *cobra.Command {
	var flags rootFlags

	rootCmd := &cobra.Command{
		Use:   "iosextract [flags] <backup-root> <output-root>",
		Short: "Extract media, chat transcripts and contacts from an iOS backup",
		Long: "iosextract reads the catalog of an unencrypted iOS backup and rebuilds its camera roll,\n" +
			"app documents and WhatsApp media as hard links with their original names and dates,\n" +
			"then writes WhatsApp transcripts, a contact card file and optionally converted notes.",
		Version:       version,
		Args:          cobra.MaximumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, &flags, args)
			if err != nil {
				return err
			}
			return runExtraction(cmd, cfg)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Configuration file path (TOML)")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	rootCmd.Flags().BoolVarP(&flags.dryRun, "dry-run", "n", false, "Print source and destination pairs without creating anything")
	rootCmd.Flags().BoolVar(&flags.preserveNames, "preserve-names", false, "Keep catalog names instead of original or date-derived ones")
	rootCmd.Flags().StringVar(&flags.notesCommand, "notes-converter", "", "Command run as '<cmd> <NoteStore.sqlite> <output>/Notes'")
	rootCmd.Flags().BoolVar(&flags.dryRun, "pretend", false, "Alias of --dry-run")
	_ = rootCmd.Flags().MarkHidden("pretend")

	rootCmd.AddCommand(newFiltersCommand(&flags))
	rootCmd.AddCommand(newReportCommand())

	return rootCmd
}

// loadConfig layers flags and positional arguments over the file and
// environment configuration, then initialises logging.
func loadConfig(cmd *cobra.Command, flags *rootFlags, args []string) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}

	if len(args) > 0 {
		cfg.BackupRoot = args[0]
	}
	if len(args) > 1 {
		cfg.OutputRoot = args[1]
	}
	if changed(cmd, "dry-run") || changed(cmd, "pretend") {
		cfg.DryRun = flags.dryRun
	}
	if changed(cmd, "preserve-names") {
		cfg.PreserveNames = flags.preserveNames
	}
	if changed(cmd, "log-level") {
		cfg.LogLevel = flags.logLevel
	}
	if changed(cmd, "notes-converter") {
		cfg.NotesConverter = flags.notesCommand
	}

	if err := setupLogging(cfg.LogLevel); err != nil {
		return nil, err
	}
	return cfg, nil
}

func changed(cmd *cobra.Command, name string) bool {
	flag := cmd.Flags().Lookup(name)
	return flag != nil && flag.Changed
}

func setupLogging(level string) error {
	utils.InitDefaultLogger()
	priority, err := utils.ParseLevel(level)
	if err != nil {
		return err
	}
	utils.DefaultLogger.SetLevel(priority)
	return nil
}

func runExtraction(cmd *cobra.Command, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := acquisition.Run(ctx, cfg, acquisition.Options{
		ToolVersion: version,
		PlanOut:     cmd.OutOrStdout(),
	})
	if err != nil {
		return err
	}
	printSummary(cmd.OutOrStdout(), report)
	return nil
}
