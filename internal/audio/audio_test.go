package audio

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/overlay/internal/config"
	"github.com/jmylchreest/overlay/internal/model"
)

type fakeOutput struct {
	mu         sync.Mutex
	inits      int
	sampleRate beep.SampleRate
	played     int
	closed     bool
}

func (o *fakeOutput) Init(sr beep.SampleRate, _ int) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.inits++
	o.sampleRate = sr
	return nil
}

func (o *fakeOutput) Play(s beep.Streamer) {
	samples := make([][2]float64, 512)
	for {
		if _, ok := s.Stream(samples); !ok {
			break
		}
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.played++
}

func (o *fakeOutput) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
}

func (o *fakeOutput) playCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.played
}

func writeWAV(t *testing.T, path string, rate beep.SampleRate) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	format := beep.Format{SampleRate: rate, NumChannels: 2, Precision: 2}
	require.NoError(t, wav.Encode(f, beep.Silence(int(rate)/10), format))
}

func TestPlayer_PlayCachesAndResamples(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.wav")
	b := filepath.Join(dir, "b.wav")
	writeWAV(t, a, 44100)
	writeWAV(t, b, 22050)

	out := &fakeOutput{}
	p := NewPlayerWithOutput(out, nil)

	require.NoError(t, p.Play(a))
	assert.True(t, p.Cached(a))
	require.NoError(t, p.Play(a))
	require.NoError(t, p.Play(b))

	assert.Equal(t, 1, out.inits, "output opened once")
	assert.Equal(t, beep.SampleRate(44100), out.sampleRate)
	assert.Equal(t, 3, out.playCount())

	p.InvalidateCache(a)
	assert.False(t, p.Cached(a))
	assert.True(t, p.Cached(b))

	p.Close()
	assert.True(t, out.closed)
	assert.False(t, p.Cached(b))
}

func TestPlayer_Errors(t *testing.T) {
	p := NewPlayerWithOutput(&fakeOutput{}, nil)

	assert.NoError(t, p.Play(""), "empty path is a no-op")

	err := p.Play(filepath.Join(t.TempDir(), "missing.wav"))
	assert.Error(t, err)

	txt := filepath.Join(t.TempDir(), "sound.txt")
	require.NoError(t, os.WriteFile(txt, []byte("x"), 0o644))
	assert.ErrorIs(t, p.Play(txt), ErrUnsupportedFormat)

	bad := filepath.Join(t.TempDir(), "bad.wav")
	require.NoError(t, os.WriteFile(bad, []byte("not a wav"), 0o644))
	assert.Error(t, p.Play(bad))
}

func TestPlayer_Volume(t *testing.T) {
	p := NewPlayerWithOutput(&fakeOutput{}, nil)
	p.SetVolume(1.5)
	assert.Equal(t, 1.0, p.Volume())
	p.SetVolume(-1)
	assert.Equal(t, 0.0, p.Volume())

	assert.InDelta(t, -1.0, volumeToExponent(0.5), 1e-9)
	assert.Equal(t, 0.0, volumeToExponent(1))
}

func TestManager_PlayForType(t *testing.T) {
	dir := t.TempDir()
	def := filepath.Join(dir, "default.wav")
	errSound := filepath.Join(dir, "error.wav")
	writeWAV(t, def, 44100)
	writeWAV(t, errSound, 44100)

	cfg := config.DefaultConfig()
	cfg.Audio.Enabled = true
	cfg.Audio.Volume = 50
	cfg.Audio.Sounds.Default = def
	cfg.Audio.Sounds.Error = errSound
	cfg.Audio.Sounds.Info = filepath.Join(dir, "missing.wav")

	out := &fakeOutput{}
	m := NewManager(cfg, NewPlayerWithOutput(out, nil), nil)

	sounds := m.Sounds()
	assert.Equal(t, errSound, sounds[model.TypeError])
	assert.Equal(t, def, sounds[model.TypeSuccess], "falls back to the default sound")
	_, ok := sounds[model.TypeInfo]
	assert.False(t, ok, "missing files are skipped")

	require.NoError(t, m.PlayForType(model.TypeError))
	require.NoError(t, m.PlayForType(model.TypeInfo))
	assert.Equal(t, 1, out.playCount())
	assert.Equal(t, 0.5, m.player.Volume())

	t.Run("disabled", func(t *testing.T) {
		off := config.DefaultConfig()
		off.Audio.Sounds.Default = def
		m.UpdateConfig(off)
		assert.False(t, m.Enabled())
		require.NoError(t, m.PlayForType(model.TypeError))
		require.NoError(t, m.PlayFile(def))
		assert.Equal(t, 1, out.playCount())
	})
}

func TestWatcher_InvalidatesOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ding.wav")
	writeWAV(t, path, 44100)

	p := NewPlayerWithOutput(&fakeOutput{}, nil)
	require.NoError(t, p.Preload(path))

	w := NewWatcher(p, nil)
	changed := make(chan string, 4)
	w.SetChangeCallback(func(path string) { changed <- path })
	require.NoError(t, w.Watch(path))
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	writeWAV(t, path, 44100)

	select {
	case got := <-changed:
		assert.Equal(t, path, got)
	case <-time.After(2 * time.Second):
		t.Fatal("no change event")
	}
	assert.False(t, p.Cached(path))

	w.Unwatch(path)
	w.Unwatch(path)
}
