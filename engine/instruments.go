package engine

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

const DefaultInstrument = "acoustic_grand_piano"

// General MIDI program names as used by MIDI.js soundfonts, indexed by program.
var gmInstruments = []string{
	"acoustic_grand_piano", "bright_acoustic_piano", "electric_grand_piano", "honkytonk_piano",
	"electric_piano_1", "electric_piano_2", "harpsichord", "clavinet",
	"celesta", "glockenspiel", "music_box", "vibraphone",
	"marimba", "xylophone", "tubular_bells", "dulcimer",
	"drawbar_organ", "percussive_organ", "rock_organ", "church_organ",
	"reed_organ", "accordion", "harmonica", "tango_accordion",
	"acoustic_guitar_nylon", "acoustic_guitar_steel", "electric_guitar_jazz", "electric_guitar_clean",
	"electric_guitar_muted", "overdriven_guitar", "distortion_guitar", "guitar_harmonics",
	"acoustic_bass", "electric_bass_finger", "electric_bass_pick", "fretless_bass",
	"slap_bass_1", "slap_bass_2", "synth_bass_1", "synth_bass_2",
	"violin", "viola", "cello", "contrabass",
	"tremolo_strings", "pizzicato_strings", "orchestral_harp", "timpani",
	"string_ensemble_1", "string_ensemble_2", "synth_strings_1", "synth_strings_2",
	"choir_aahs", "voice_oohs", "synth_choir", "orchestra_hit",
	"trumpet", "trombone", "tuba", "muted_trumpet",
	"french_horn", "brass_section", "synth_brass_1", "synth_brass_2",
	"soprano_sax", "alto_sax", "tenor_sax", "baritone_sax",
	"oboe", "english_horn", "bassoon", "clarinet",
	"piccolo", "flute", "recorder", "pan_flute",
	"blown_bottle", "shakuhachi", "whistle", "ocarina",
	"lead_1_square", "lead_2_sawtooth", "lead_3_calliope", "lead_4_chiff",
	"lead_5_charang", "lead_6_voice", "lead_7_fifths", "lead_8_bass__lead",
	"pad_1_new_age", "pad_2_warm", "pad_3_polysynth", "pad_4_choir",
	"pad_5_bowed", "pad_6_metallic", "pad_7_halo", "pad_8_sweep",
	"fx_1_rain", "fx_2_soundtrack", "fx_3_crystal", "fx_4_atmosphere",
	"fx_5_brightness", "fx_6_goblins", "fx_7_echoes", "fx_8_scifi",
	"sitar", "banjo", "shamisen", "koto",
	"kalimba", "bagpipe", "fiddle", "shanai",
	"tinkle_bell", "agogo", "steel_drums", "woodblock",
	"taiko_drum", "melodic_tom", "synth_drum", "reverse_cymbal",
	"guitar_fret_noise", "breath_noise", "seashore", "bird_tweet",
	"telephone_ring", "helicopter", "applause", "gunshot",
}

func Program(instrument string) (uint8, bool) {
	for i, name := range gmInstruments {
		if name == instrument {
			return uint8(i), true
		}
	}
	return 0, false
}

func isRemote(uri string) bool {
	return strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://")
}

// findSoundfont looks for <instrument>-mp3.js or <instrument>-ogg.js under
// the soundfont location and returns the first one present.
func (e *SMF) findSoundfont(ctx context.Context, location, instrument string) (string, error) {
	for _, format := range []string{"mp3", "ogg"} {
		name := instrument + "-" + format + ".js"
		if isRemote(location) {
			uri := strings.TrimSuffix(location, "/") + "/" + name
			ok, err := e.exists(ctx, uri)
			if err != nil {
				return "", err
			}
			if ok {
				return uri, nil
			}
			continue
		}

		path := filepath.Join(location, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", errors.Errorf("no soundfont for %s in %s", instrument, location)
}

func (e *SMF) exists(ctx context.Context, uri string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, uri, nil)
	if err != nil {
		return false, errors.Wrap(err, "could not build soundfont request")
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return false, errors.Wrap(err, "could not reach soundfont")
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}
