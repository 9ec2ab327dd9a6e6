package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"

	"github.com/AnyUserName/tiff2jp2/internal/logging"
	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"

	verbose  bool
	logLevel string
	logJSON  bool
	logFile  string

	logSink io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "tiff2jp2 <input>",
	Short: "Lossless TIFF to JPEG 2000 (JP2) converter",
	Long: `tiff2jp2 converts gray and RGB TIFFs (8 or 16 bit) to lossless JP2 files.

Input is a TIFF file or a directory of them (--recursive for subdirectories).
Physical resolution from the TIFF (or --dpi) is written into a JP2 "res " box
and an XMP uuid box. Compression is done by OpenJPEG's opj_compress.`,
	Version:           version,
	Args:              cobra.ExactArgs(1),
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
	RunE:              runConvert,
}

// Execute runs the command tree under ctx. The log file, if any, is closed
// on every exit path.
func Execute(ctx context.Context) error {
	defer closeLogSink()
	return rootCmd.ExecuteContext(ctx)
}

func closeLogSink() {
	if logSink != nil {
		logSink.Close()
		logSink = nil
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&verbose, "verbose", "v", false, "verbose output (same as --log-level DEBUG)")
	pf.StringVar(&logLevel, "log-level", "WARN", "log level (DEBUG, INFO, WARN, ERROR)")
	pf.BoolVar(&logJSON, "log-json", false, "log as JSON")
	pf.StringVar(&logFile, "log-file", "", "also write JSON logs to this size-rotated file")
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"tiff2jp2 %s (%s/%s, %s)\n",
		version, runtime.GOOS, runtime.GOARCH, runtime.Version(),
	))
}

func setupLogging(cmd *cobra.Command, _ []string) error {
	level, err := logging.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("invalid --log-level %q (use DEBUG, INFO, WARN or ERROR)", logLevel)
	}
	if verbose {
		level = slog.LevelDebug
	}

	h := logging.Handler(cmd.ErrOrStderr(), logJSON, level)
	if logFile != "" {
		sink := logging.NewFileSink(logFile, 50, 3)
		logSink = sink
		h = logging.Tee(h, logging.Handler(sink, true, slog.LevelDebug))
	}
	slog.SetDefault(slog.New(h))
	return nil
}

// logVerbose prints a message only when --verbose is set.
func logVerbose(format string, args ...any) {
	if verbose {
		fmt.Fprintf(os.Stderr, "[tiff2jp2] "+format+"\n", args...)
	}
}
