package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/AnyUserName/tiff2jp2/internal/manifest"
	"github.com/spf13/cobra"
)

// DefaultManifestName is looked up when stats is given a directory.
const DefaultManifestName = "tiff2jp2.manifest.json"

var statsCmd = &cobra.Command{
	Use:   "stats <out_dir_or_manifest>",
	Short: "Display statistics for a conversion manifest",
	Args:  cobra.ExactArgs(1),
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	path := args[0]

	// If path is a directory, look for manifest inside.
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		path = filepath.Join(path, DefaultManifestName)
	}

	m, err := manifest.ReadJSON(path)
	if err != nil {
		return err
	}
	m.ComputeStats()
	printStats(cmd.OutOrStdout(), m)
	return nil
}

func printStats(w io.Writer, m *manifest.Manifest) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Manifest version: %d\n", m.Version)
	fmt.Fprintf(w, "  Generated:        %s\n", m.GeneratedAt)
	fmt.Fprintf(w, "  Profile:          %s\n", m.Profile)
	fmt.Fprintf(w, "  Engine:           %s\n", m.Engine)
	if m.BuildInfo != nil {
		fmt.Fprintf(w, "  Workers:          %d  (vector: %s)\n", m.BuildInfo.Workers, m.BuildInfo.Vector)
	}
	fmt.Fprintln(w)

	s := m.Stats
	fmt.Fprintf(w, "  Images:           %d\n", s.TotalImages)
	fmt.Fprintf(w, "  Converted:        %d\n", s.Converted)
	fmt.Fprintf(w, "  Skipped:          %d\n", s.Skipped)
	fmt.Fprintf(w, "  Failed:           %d\n", s.Failed)
	fmt.Fprintf(w, "  Input size:       %s\n", formatBytes(s.TotalInputBytes))
	fmt.Fprintf(w, "  Output size:      %s\n", formatBytes(s.TotalOutputBytes))
	if s.TotalInputBytes > 0 {
		ratio := float64(s.TotalOutputBytes) / float64(s.TotalInputBytes) * 100
		fmt.Fprintf(w, "  Compression:      %.1f%% of original\n", ratio)
	}
	fmt.Fprintln(w)

	// Per-layout breakdown.
	type layoutStat struct {
		count int
		in    int64
		out   int64
	}
	layouts := map[string]layoutStat{}
	var withDensity, withICC int
	var totalMS int64
	for _, img := range m.Images {
		if img.Status != manifest.StatusConverted {
			continue
		}
		ls := layouts[img.Layout]
		ls.count++
		ls.in += img.InputSize
		ls.out += img.OutputSize
		layouts[img.Layout] = ls
		if img.ResBox || img.XMP {
			withDensity++
		}
		if img.ICC {
			withICC++
		}
		totalMS += img.ElapsedMS
	}
	if len(layouts) > 0 {
		names := make([]string, 0, len(layouts))
		for n := range layouts {
			names = append(names, n)
		}
		sort.Strings(names)
		fmt.Fprintln(w, "  Layout breakdown:")
		for _, n := range names {
			ls := layouts[n]
			fmt.Fprintf(w, "    %-6s  %4d files  %s → %s\n", n, ls.count, formatBytes(ls.in), formatBytes(ls.out))
		}
		fmt.Fprintf(w, "  Density boxes:    %d / %d\n", withDensity, s.Converted)
		fmt.Fprintf(w, "  ICC profiles:     %d / %d\n", withICC, s.Converted)
		fmt.Fprintf(w, "  Mean time:        %d ms\n", totalMS/int64(s.Converted))
		fmt.Fprintln(w)
	}

	// Failures.
	var failures []manifest.Image
	for _, img := range m.Images {
		if img.Status == manifest.StatusFailed {
			failures = append(failures, img)
		}
	}
	if len(failures) > 0 {
		fmt.Fprintf(w, "  Failures (%d):\n", len(failures))
		for _, f := range failures {
			fmt.Fprintf(w, "    ✖ %s — %s\n", f.Input, f.Error)
		}
		fmt.Fprintln(w)
	}
}
