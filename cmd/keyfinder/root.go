package main

import (
	"fmt"
	"runtime"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kfxtools/keyfinder/internal/version"
	"github.com/kfxtools/keyfinder/pkg/logging"
	"github.com/kfxtools/keyfinder/pkg/ui"
)

var (
	verbosity    int
	skipWizard   bool
	resetConfig  bool
	ignoreOSGate bool

	rootCmd = &cobra.Command{
		Use:   "keyfinder",
		Short: "Extract Kindle DRM keys and feed them to calibre's DeDRM plugin",
		Long: `keyfinder runs the full Kindle decryption workflow on a Windows
workstation: it extracts account keys from Kindle for PC one book at a
time, installs them into the DeDRM plugin's configuration, and can then
import the decrypted books into a calibre library and convert them to
EPUB.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.SetupLogger(verbosity)
			log.Debug().Str("command", cmd.Name()).Msg("Command started")
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			code := runPipeline(cmd.Context())
			if code != 0 {
				// Exit code is carried through Execute, not cobra errors.
				exitCode = code
			}
			return nil
		},
	}

	exitCode int
)

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		ui.Error("%v", err)
		return 1
	}
	return exitCode
}

func init() {
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)")
	rootCmd.Flags().BoolVar(&skipWizard, "no-wizard", false, "Fail instead of prompting when configuration is missing")
	rootCmd.Flags().BoolVar(&resetConfig, "reset-config", false, "Delete the saved configuration before starting")
	rootCmd.Flags().BoolVar(&ignoreOSGate, "ignore-os-check", false, "Run even when the OS is not Windows (for development)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print version information for keyfinder`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("keyfinder version %s\n", version.Version)
		fmt.Printf("  commit: %s\n", version.Commit)
		fmt.Printf("  built:  %s\n", version.Date)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the saved configuration file location",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPaths()
		if err != nil {
			return err
		}
		fmt.Println(p.ConfigFile())
		return nil
	},
}

// windowsOnly gates the pipeline: every external tool and path this
// program drives (Kindle for PC, the extractor, calibre's Windows
// layout) lives on Windows.
func windowsOnly() bool {
	return runtime.GOOS == "windows" || ignoreOSGate
}

func printOSGateHelp() {
	ui.Error("keyfinder only works on Windows (detected: %s)", runtime.GOOS)
	ui.Blank()
	ui.Info("It depends on Windows-specific locations:")
	ui.Info("  - Kindle for PC installation directories")
	ui.Info("  - calibre configuration under AppData\\Roaming\\calibre")
	ui.Blank()
	ui.Info("To extract keys manually, run the extractor directly:")
	ui.Info("  KFXKeyExtractor28.exe <content_dir> <output_key> <output_k4i>")
}
