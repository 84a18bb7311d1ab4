//go:build e2e
// +build e2e

package e2e_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jsphweid/dsmidiplayer/cmd"
	"github.com/jsphweid/dsmidiplayer/engine"
	"github.com/jsphweid/dsmidiplayer/model"
	"github.com/jsphweid/dsmidiplayer/widget"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
	"go.uber.org/zap"
)

type sent struct {
	mu   sync.Mutex
	msgs []gomidi.Message
}

func (s *sent) send(msg gomidi.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return nil
}

func (s *sent) noteOns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	for _, m := range s.msgs {
		var ch, key, vel uint8
		if m.GetNoteStart(&ch, &key, &vel) {
			n++
		}
	}
	return n
}

func writeFixtures(t *testing.T) (soundfont, song string) {
	dir := t.TempDir()
	soundfont = filepath.Join(dir, "soundfont")
	require.NoError(t, os.MkdirAll(soundfont, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(soundfont, "acoustic_grand_piano-mp3.js"), []byte("{}"), 0o644))

	var tr smf.Track
	tr.Add(0, gomidi.NoteOn(0, 60, 100))
	tr.Add(0, gomidi.NoteOn(0, 60, 100))
	tr.Add(48, gomidi.NoteOff(0, 60))
	tr.Add(0, gomidi.NoteOn(0, 64, 100))
	tr.Add(48, gomidi.NoteOff(0, 64))
	tr.Close(0)

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(480)
	require.NoError(t, s.Add(tr))

	song = filepath.Join(dir, "song.mid")
	f, err := os.Create(song)
	require.NoError(t, err)
	defer f.Close()
	_, err = s.WriteTo(f)
	require.NoError(t, err)
	return soundfont, song
}

func call(t *testing.T, srv *httptest.Server, method, path string, body any) model.PlayerResponse {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Less(t, resp.StatusCode, 300)

	var res model.PlayerResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	return res
}

func TestLoadAndPlayE2E(t *testing.T) {
	soundfont, song := writeFixtures(t)

	out := &sent{}
	eng := engine.NewSMF(engine.WithSender(out.send))
	w := widget.New(eng,
		widget.WithBank(engine.BankConfig{SoundfontURL: soundfont}),
		widget.WithReloadDebounce(10*time.Millisecond),
	)
	defer w.Detach()

	srv := httptest.NewServer(cmd.NewRouter(context.Background(), w, eng, zap.NewNop()))
	defer srv.Close()

	res := call(t, srv, http.MethodPut, "/player/source?wait=1", model.SourceRequestBody{Src: song})
	assert := assert.New(t)
	assert.Equal("ready", res.State)
	assert.Equal(1, res.Removed)

	res = call(t, srv, http.MethodPost, "/player/toggle", nil)
	assert.Equal("playing", res.State)
	assert.Equal("Pause", res.PlayPauseLabel)

	require.Eventually(t, func() bool {
		return call(t, srv, http.MethodGet, "/player", nil).State == "stopped"
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(2, out.noteOns())
}
