package midi

import (
	"bytes"
	"io"
	"os"

	"github.com/pkg/errors"
	"gitlab.com/gomidi/midi/v2/smf"
)

func ReadMidiFile(filepath string) (*smf.SMF, error) {
	dat, err := os.ReadFile(filepath)
	if err != nil {
		return nil, errors.Wrap(err, "error reading midi file")
	}
	return ParseMidi(dat)
}

func ReadMidi(r io.Reader) (*smf.SMF, error) {
	dat, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "error reading midi data")
	}
	return ParseMidi(dat)
}

func ParseMidi(dat []byte) (s *smf.SMF, e error) {
	// handle panics
	// https://github.com/gomidi/midi/issues/20
	defer func() {
		if r := recover(); r != nil {
			s = nil
			e = errors.Errorf("error parsing midi data: %v", r)
		}
	}()

	res, err := smf.ReadFrom(bytes.NewReader(dat))
	if err != nil {
		return nil, errors.Wrap(err, "error parsing midi data")
	}
	return res, nil
}
