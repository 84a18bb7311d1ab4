package cmd

import (
	"context"
	"fmt"

	"github.com/jsphweid/dsmidiplayer/engine"
	"github.com/jsphweid/dsmidiplayer/logger"
	"github.com/jsphweid/dsmidiplayer/midi"
	"github.com/jsphweid/dsmidiplayer/model"
	"github.com/jsphweid/dsmidiplayer/timeline"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	verbose      bool
	excerptFrom  int64
	excerptNotes int
)

func init() {
	flags := normalizeCmd.Flags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "print every removed entry")
	flags.Int64Var(&excerptFrom, "from-tick", 0, "only normalize a local file from this tick on")
	flags.IntVar(&excerptNotes, "notes", 0, "only normalize this many note messages per track of a local file")
	rootCmd.AddCommand(normalizeCmd)
}

var normalizeCmd = &cobra.Command{
	Use:   "normalize [midi-file-src]",
	Short: "Decodes a MIDI file and removes duplicate note events",
	Long: `Decodes a MIDI file from a path or URL, collapses back-to-back duplicate
note events and prints how many entries were removed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := logger.New(logLevel, false)
		if err != nil {
			return err
		}
		defer log.Sync()

		src := args[0]
		raw, err := loadTimeline(cmd.Context(), src, log)
		if err != nil {
			return err
		}
		normalized, stats, err := timeline.NormalizeWithStats(raw)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%v: %v entries, %v retained, %v removed\n", src, stats.Input, stats.Retained, stats.Removed)
		if verbose {
			for _, e := range removedEntries(raw, normalized) {
				fmt.Fprintf(out, "  tick %v track %v: %v ch %v note %v vel %v\n",
					e.Ticks, e.Track, e.Event.Subtype, e.Event.Channel, e.Event.NoteNumber, e.Event.Velocity)
			}
		}
		return nil
	},
}

func loadTimeline(ctx context.Context, src string, log *zap.Logger) (model.Timeline, error) {
	if excerptFrom == 0 && excerptNotes == 0 {
		return engine.NewSMF(engine.WithLogger(log)).CreatePlayer().LoadFile(ctx, src)
	}

	s, err := midi.ReadMidiFile(src)
	if err != nil {
		return nil, err
	}
	log.Debug("normalizing excerpt", zap.Int64("from_tick", excerptFrom), zap.Int("notes", excerptNotes))
	return midi.Decode(midi.Excerpt(s, excerptFrom, excerptNotes), 0), nil
}

// removedEntries relies on normalized being a subsequence of raw that shares
// its events.
func removedEntries(raw, normalized model.Timeline) model.Timeline {
	kept := make(map[*model.MidiEvent]bool, len(normalized))
	for _, e := range normalized {
		kept[e.Event] = true
	}

	var res model.Timeline
	for _, e := range raw {
		if !kept[e.Event] {
			res = append(res, e)
		}
	}
	return res
}
