package cmd

import (
	"github.com/jsphweid/dsmidiplayer/constants"
	"github.com/spf13/cobra"
)

var (
	logLevel   string
	soundfont  string
	instrument string
	portName   string
)

var rootCmd = &cobra.Command{
	Use:   "ds-midi-player",
	Short: "MIDI file player",
	Long: `Plays MIDI files with play/pause, stop/reset and tempo controls.
Decoded timelines have back-to-back duplicate note events removed before playback.`,
	SilenceUsage: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&logLevel, "log-level", constants.GetLogLevel(), "log level (debug, info, warn, error)")
	flags.StringVar(&soundfont, "soundfont", constants.GetSoundfontPath(), "soundfont directory or URL")
	flags.StringVar(&instrument, "instrument", constants.GetInstrument(), "default instrument")
	flags.StringVar(&portName, "port", constants.GetMidiPort(), "MIDI output port, empty to only log messages")
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}
