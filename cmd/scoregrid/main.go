// Package main is the entry point for the scoregrid CLI
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/james-see/scoregrid/pkg/api"
	"github.com/james-see/scoregrid/pkg/config"
	"github.com/james-see/scoregrid/pkg/converter"
	"github.com/james-see/scoregrid/pkg/diag"
	"github.com/james-see/scoregrid/pkg/tui"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	configPath       string
	logLevel         string
	logFormat        string
	recipSpine       bool
	sourceBarNumbers bool
	staffIndications bool
	systemWidth      float64
	outputFile       string
	serverPort       int

	cfg  *config.Config
	opts converter.Options
	log  logrus.FieldLogger = logrus.StandardLogger()
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.WithField(diag.FieldCode, diag.Classify(err)).Error(err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "scoregrid",
	Short: "Convert MusicXML and MIDI scores to Humdrum kern and page layout",
	Long: `scoregrid merges the parts of a score into a time-aligned Humdrum
grid and computes horizontal and vertical layout for it.

Examples:
  scoregrid convert song.musicxml song.krn
  scoregrid xml2kern song.xml -o song.krn
  scoregrid midi2kern take.mid --recip
  scoregrid layout song.xml --width 1600
  scoregrid tui
  scoregrid serve --port 8080`,
	Version:           fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

var convertCmd = &cobra.Command{
	Use:   "convert <input> <output>",
	Short: "Auto-detect and convert between formats",
	Long:  `Detects the input format from its extension or content and the output format from its extension.`,
	Args:  cobra.ExactArgs(2),
	RunE:  runConvert,
}

var xml2kernCmd = &cobra.Command{
	Use:   "xml2kern <input.xml>",
	Short: "Convert MusicXML to kern",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return convertTo(args[0], converter.FormatMusicXML, converter.FormatKern, ".krn")
	},
}

var midi2kernCmd = &cobra.Command{
	Use:   "midi2kern <input.mid>",
	Short: "Convert MIDI to kern",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return convertTo(args[0], converter.FormatMIDI, converter.FormatKern, ".krn")
	},
}

var layoutCmd = &cobra.Command{
	Use:   "layout <input>",
	Short: "Write the page layout of a MusicXML or MIDI file as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return convertTo(args[0], converter.FormatUnknown, converter.FormatLayout, ".json")
	},
}

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List supported conversions",
	Run: func(cmd *cobra.Command, args []string) {
		for _, c := range converter.GetSupportedConversions() {
			fmt.Fprintln(cmd.OutOrStdout(), c)
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), cmd.Root().Version)
	},
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch interactive terminal UI",
	RunE: func(cmd *cobra.Command, args []string) error {
		return tui.Run(opts)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port = serverPort
		}
		return api.StartServer(port, opts)
	},
}

func init() {
	// Global flags
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	pf.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVar(&logFormat, "log-format", "", "Log format (text, json)")
	pf.BoolVar(&recipSpine, "recip", false, "Prepend a **recip rhythm spine")
	pf.BoolVar(&sourceBarNumbers, "source-bar-numbers", false, "Number barlines from the source")
	pf.BoolVar(&staffIndications, "staff-indications", false, "Emit *staffN and *partN lines")
	pf.Float64Var(&systemWidth, "width", 0, "System width for layout")

	for _, c := range []*cobra.Command{xml2kernCmd, midi2kernCmd, layoutCmd} {
		c.Flags().StringVarP(&outputFile, "output", "o", "", "Output file path")
	}
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "Server port")

	rootCmd.AddCommand(convertCmd, xml2kernCmd, midi2kernCmd, layoutCmd, formatsCmd, versionCmd, tuiCmd, serveCmd)
}

// setup loads the config file and applies the flags over it.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	if cfg, err = config.Load(configPath); err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Logging.Level = logLevel
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format = logFormat
	}
	if flags.Changed("recip") {
		cfg.Grid.RecipSpine = recipSpine
	}
	if flags.Changed("source-bar-numbers") {
		cfg.Grid.SourceBarNumbers = sourceBarNumbers
	}
	if flags.Changed("staff-indications") {
		cfg.Grid.StaffIndications = staffIndications
	}
	if flags.Changed("width") {
		cfg.Layout.SystemWidth = systemWidth
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := cfg.Logger(os.Stderr)
	if err != nil {
		return err
	}
	log = logger
	opts = converter.Options{
		Grid:   cfg.GridOptions(logger),
		Layout: cfg.LayoutOptions(logger),
		Logger: logger,
	}
	return nil
}

func getOutputPath(input, defaultExt string) string {
	if outputFile != "" {
		return outputFile
	}
	base := strings.TrimSuffix(input, filepath.Ext(input))
	return base + defaultExt
}

func runConvert(cmd *cobra.Command, args []string) error {
	input, output := args[0], args[1]
	if err := converter.New(opts).ConvertFile(cmd.Context(), input, output); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Converted %s -> %s\n", input, output)
	return nil
}

// convertTo converts input to out. An unknown from is detected from the
// input's extension, then its content.
func convertTo(input string, from, out converter.Format, ext string) error {
	data, err := os.ReadFile(input)
	if err != nil {
		return errors.Wrap(err, "failed to read input file")
	}
	if from == converter.FormatUnknown {
		if from = converter.DetectFormat(input); from == converter.FormatUnknown {
			from = converter.DetectFormatFromContent(data)
		}
	}

	output := getOutputPath(input, ext)
	result, err := converter.New(opts).Convert(rootCmd.Context(), data, from, out)
	if err != nil {
		return err
	}
	if err := os.WriteFile(output, result, 0o644); err != nil {
		return errors.Wrap(err, "failed to write output file")
	}

	fmt.Printf("Converted %s -> %s\n", input, output)
	return nil
}
