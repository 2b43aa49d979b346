package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"garage-layout/internal/dispatch"
	"garage-layout/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_OSPath(t *testing.T) {
	s := NewFileStore(FileLayout{Dir: "/out"})

	p, err := s.OSPath(dispatch.PathCameraHub)
	require.NoError(t, err)
	assert.Equal(t, "/out/CameraHubConfig.xml", p)

	p, err = s.OSPath(dispatch.PathDevicesConfig)
	require.NoError(t, err)
	assert.Equal(t, "/out/DevicesConfig.xml", p)

	p, err = s.OSPath(dispatch.FLIPath("CAM-1-S2"))
	require.NoError(t, err)
	assert.Equal(t, "/out/fli/CAM-1-S2.xml", p)

	p, err = s.OSPath(dispatch.FLIPath("../../etc/passwd"))
	require.NoError(t, err)
	assert.Equal(t, "/out/fli/.._.._etc_passwd.xml", p)

	_, err = s.OSPath("bogus")
	assert.ErrorIs(t, err, domain.ErrBadInput)
}

func TestFileStore_WriteRead(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(FileLayout{Dir: dir, FLIDir: "plugins", CameraHubFile: "hub.xml"})
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, dispatch.PathCameraHub, []byte("<CameraHubConfig/>")))
	require.NoError(t, s.Write(ctx, dispatch.FLIPath("CAM-1"), []byte("<PluginConfig/>")))
	require.NoError(t, s.Write(ctx, dispatch.PathCameraHub, []byte("<CameraHubConfig></CameraHubConfig>")))

	b, err := os.ReadFile(filepath.Join(dir, "hub.xml"))
	require.NoError(t, err)
	assert.Equal(t, "<CameraHubConfig></CameraHubConfig>", string(b))

	b, err = s.ReadBytes(ctx, dispatch.FLIPath("CAM-1"))
	require.NoError(t, err)
	assert.Equal(t, "<PluginConfig/>", string(b))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	assert.ElementsMatch(t, []string{"hub.xml", "plugins"}, names, "no temp files left behind")

	_, err = s.ReadBytes(ctx, dispatch.PathDevicesConfig)
	assert.ErrorIs(t, err, dispatch.ErrNotFound)
}

func newRedisDocs(t *testing.T) (*KVDocuments, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { c.Close() })
	return NewKVDocuments(NewRedisKV(c), ""), mr
}

func TestKVDocuments_WriteRead(t *testing.T) {
	docs, mr := newRedisDocs(t)
	ctx := context.Background()

	require.NoError(t, docs.Write(ctx, dispatch.PathDevicesConfig, []byte("<Devices/>")))
	require.NoError(t, docs.Write(ctx, dispatch.FLIPath("CAM-1"), []byte("<PluginConfig/>")))

	got, err := mr.Get("garage:config:devicesConfig")
	require.NoError(t, err)
	assert.Equal(t, "<Devices/>", got)

	b, err := docs.ReadBytes(ctx, dispatch.FLIPath("CAM-1"))
	require.NoError(t, err)
	assert.Equal(t, "<PluginConfig/>", string(b))

	_, err = docs.ReadBytes(ctx, dispatch.PathCameraHub)
	assert.ErrorIs(t, err, dispatch.ErrNotFound)

	paths, err := docs.List(ctx)
	require.NoError(t, err)
	sort.Strings(paths)
	assert.Equal(t, []string{"devicesConfig", "fli:CAM-1"}, paths)

	assert.ErrorIs(t, docs.Write(ctx, "nope", nil), domain.ErrBadInput)
}

func TestKVDocuments_ServesCollect(t *testing.T) {
	docs, _ := newRedisDocs(t)
	ctx := context.Background()

	site := domain.NewSite(nil)
	g := &domain.Garage{InternalName: "A"}
	site.AppendGarage(g)
	l := &domain.Level{InternalName: "L1"}
	g.AppendLevel(l)
	cam := domain.NewCamera("CAM-1", domain.SubKindLPR)
	cam.IPAddress = "10.0.0.5"
	l.AppendDevice(&cam)

	_, err := dispatch.New(nil).ExportSite(ctx, site, docs)
	require.NoError(t, err)

	devs, err := dispatch.New(nil).Collect(ctx, docs)
	require.NoError(t, err)
	require.Len(t, devs, 1)
	assert.Equal(t, domain.SubKindLPR, devs[0].SubKind)
	assert.Equal(t, "10.0.0.5", devs[0].IPAddress)
}

func TestRedisKV_DownServer(t *testing.T) {
	docs, mr := newRedisDocs(t)
	mr.Close()

	err := docs.Write(context.Background(), dispatch.PathCameraHub, []byte("x"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMiss)
}

type recordingWriter struct {
	paths []string
	err   error
}

func (w *recordingWriter) Write(_ context.Context, path string, _ []byte) error {
	if w.err != nil {
		return w.err
	}
	w.paths = append(w.paths, path)
	return nil
}

func TestMultiWriter(t *testing.T) {
	a, b := &recordingWriter{}, &recordingWriter{}
	require.NoError(t, MultiWriter{a, b}.Write(context.Background(), "cameraHub", nil))
	assert.Equal(t, []string{"cameraHub"}, a.paths)
	assert.Equal(t, []string{"cameraHub"}, b.paths)

	boom := errors.New("boom")
	c := &recordingWriter{}
	err := MultiWriter{&recordingWriter{err: boom}, c}.Write(context.Background(), "cameraHub", nil)
	assert.Same(t, boom, err)
	assert.Empty(t, c.paths)
}
