package cmd

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/jsphweid/dsmidiplayer/logger"
	"github.com/jsphweid/dsmidiplayer/tui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var logFile string

func init() {
	playCmd.Flags().StringVar(&logFile, "log-file", "ds-midi-player.log", "file to write logs to while the terminal UI runs")
	rootCmd.AddCommand(playCmd)
}

var playCmd = &cobra.Command{
	Use:   "play [midi-file-src]",
	Short: "Plays a MIDI file with terminal controls",
	Long: `Plays a MIDI file from a path or URL. Space toggles play/pause, s resets,
digits and enter set the tempo, + and - nudge it, q quits.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		// the terminal belongs to the UI, so logs go to a file
		log, err := logger.ToFile(logLevel, logFile)
		if err != nil {
			return err
		}
		defer log.Sync()

		eng, closePort, err := newEngine(log)
		if err != nil {
			return err
		}
		defer closePort()

		w := newWidget(eng, log)
		defer w.Detach()
		if _, err := w.Attach(cmd.Context(), args[0]); err != nil {
			return err
		}

		if _, err := tea.NewProgram(tui.NewModel(w)).Run(); err != nil {
			log.Error("terminal ui failed", zap.Error(err))
			return err
		}
		return nil
	},
}
