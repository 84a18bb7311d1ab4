package cmd

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/jsphweid/dsmidiplayer/logger"
	"github.com/jsphweid/dsmidiplayer/midi"
	"github.com/jsphweid/dsmidiplayer/timeline"
	"github.com/jsphweid/dsmidiplayer/util"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const reportTop = 10

func init() {
	rootCmd.AddCommand(reportCmd)
}

var reportCmd = &cobra.Command{
	Use:   "report [dir] [max-files]",
	Short: "Reports duplicate note events across a directory of MIDI files",
	Long: `Walks a directory for .mid/.midi files, normalizes each one and reports
how many duplicate note events were removed overall and per file.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := logger.New(logLevel, false)
		if err != nil {
			return err
		}
		defer log.Sync()

		maxNum := 0
		if len(args) == 2 {
			maxNum, err = strconv.Atoi(args[1])
			if err != nil || maxNum < 0 {
				return fmt.Errorf("max-files must be a non-negative number, got %q", args[1])
			}
		}

		paths, err := util.GatherAllMidiPaths(args[0], maxNum)
		if err != nil {
			return err
		}
		report(cmd.OutOrStdout(), buildReport(paths, log))
		return nil
	},
}

type normalizationReport struct {
	perFile  map[string]timeline.Stats
	failures map[string]error
}

func buildReport(paths []string, log *zap.Logger) normalizationReport {
	r := normalizationReport{
		perFile:  make(map[string]timeline.Stats),
		failures: make(map[string]error),
	}

	for _, path := range paths {
		s, err := midi.ReadMidiFile(path)
		if err != nil {
			log.Warn("skipping unreadable midi file", zap.String("path", path), zap.Error(err))
			r.failures[path] = err
			continue
		}
		_, stats, err := timeline.NormalizeWithStats(midi.Decode(s, 0))
		if err != nil {
			log.Warn("skipping malformed midi file", zap.String("path", path), zap.Error(err))
			r.failures[path] = err
			continue
		}
		r.perFile[path] = stats
	}
	return r
}

func report(out io.Writer, r normalizationReport) {
	files := util.GetKeys(r.perFile)
	sort.Slice(files, func(i, j int) bool {
		a, b := r.perFile[files[i]], r.perFile[files[j]]
		if a.Removed != b.Removed {
			return a.Removed > b.Removed
		}
		return files[i] < files[j]
	})

	inputs := make([]int, 0, len(files))
	removed := make([]int, 0, len(files))
	affected := 0
	for _, f := range files {
		inputs = append(inputs, r.perFile[f].Input)
		removed = append(removed, r.perFile[f].Removed)
		if r.perFile[f].Removed > 0 {
			affected++
		}
	}

	fmt.Fprintf(out, "files normalized: %v\n", len(files))
	fmt.Fprintf(out, "files failed: %v\n", len(r.failures))
	fmt.Fprintf(out, "files with duplicates: %v\n", affected)
	fmt.Fprintf(out, "entries: %v\n", util.Sum(inputs))
	fmt.Fprintf(out, "entries removed: %v\n", util.Sum(removed))

	for _, f := range files[:util.Min(reportTop, affected)] {
		fmt.Fprintf(out, "  %v: %v of %v removed\n", f, r.perFile[f].Removed, r.perFile[f].Input)
	}

	failed := util.GetKeys(r.failures)
	sort.Strings(failed)
	for _, f := range failed {
		fmt.Fprintf(out, "  failed %v: %v\n", f, r.failures[f])
	}
}
