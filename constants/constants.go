package constants

import (
	"os"
	"time"
)

const (
	DefaultSoundfontPath  = "./soundfont/"
	DefaultInstrument     = "acoustic_grand_piano"
	DefaultListenAddr     = ":8080"
	DefaultLogLevel       = "info"
	DefaultReloadDebounce = 250 * time.Millisecond
)

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func GetSoundfontPath() string {
	return getenv("DSMIDI_SOUNDFONT_PATH", DefaultSoundfontPath)
}

func GetInstrument() string {
	return getenv("DSMIDI_INSTRUMENT", DefaultInstrument)
}

func GetListenAddr() string {
	return getenv("DSMIDI_LISTEN_ADDR", DefaultListenAddr)
}

// GetMidiPort is the output port name. Empty means messages are only logged.
func GetMidiPort() string {
	return os.Getenv("DSMIDI_MIDI_PORT")
}

func GetLogLevel() string {
	return getenv("DSMIDI_LOG_LEVEL", DefaultLogLevel)
}

func GetReloadDebounce() time.Duration {
	d, err := time.ParseDuration(os.Getenv("DSMIDI_RELOAD_DEBOUNCE"))
	if err != nil || d < 0 {
		return DefaultReloadDebounce
	}
	return d
}
