package monitor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/catdetector/companion/internal/controller"
	"github.com/catdetector/companion/internal/database"
	"github.com/catdetector/companion/internal/editor"
	"github.com/catdetector/companion/internal/geo"
	"github.com/catdetector/companion/internal/model"
	"github.com/catdetector/companion/pkg/core"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type staticSource struct {
	snap controller.Snapshot
}

func (s staticSource) Snapshot() controller.Snapshot { return s.snap }

func testSource() staticSource {
	return staticSource{snap: controller.Snapshot{
		Status:          core.StatusConnected,
		Reason:          "Connected and monitoring...",
		ClientID:        "cat-detector-gui-0badf00d",
		Broker:          core.BrokerConfig{Host: "localhost", Port: 9001},
		DetectionStatus: "No cat",
		Frames:          12,
		ImageSize:       geo.Size{Width: 640, Height: 480},
		Zones: core.ZoneConfig{ActivationAreas: []core.Zone{
			{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}},
		}},
		Editor: editor.View{State: editor.Editing},
	}}
}

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	m := database.NewManager(zerolog.Nop())
	db, err := m.GetSqliteDB("")
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(model.DatabaseModels...))
	return db
}

func TestSample(t *testing.T) {
	svc := NewService(Dependencies{Source: testSource()})

	s := svc.Sample()
	assert.Equal(t, "Connected", s.Status)
	assert.Equal(t, "cat-detector-gui-0badf00d", s.ClientID)
	assert.Equal(t, "localhost", s.BrokerHost)
	assert.Equal(t, 9001, s.BrokerPort)
	assert.Equal(t, uint64(12), s.Frames)
	assert.Equal(t, 640, s.ImageWidth)
	assert.Equal(t, 480, s.ImageHeight)
	assert.Equal(t, 1, s.Zones)
	assert.True(t, s.Editing)
}

func TestWriteSample_FileAndDB(t *testing.T) {
	dir := t.TempDir()
	db := testDB(t)
	svc := NewService(Dependencies{Source: testSource(), DB: db, StatusDir: dir})

	require.NoError(t, svc.WriteSample(svc.Sample()))

	data, err := os.ReadFile(filepath.Join(dir, StatusFileName))
	require.NoError(t, err)
	var fromFile model.HealthSample
	require.NoError(t, json.Unmarshal(data, &fromFile))
	assert.Equal(t, "No cat", fromFile.DetectionStatus)

	var count int64
	require.NoError(t, db.Model(&model.HealthSample{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestWriteSample_BadDirectory(t *testing.T) {
	svc := NewService(Dependencies{Source: testSource(), StatusDir: filepath.Join(t.TempDir(), "missing")})
	assert.Error(t, svc.WriteSample(svc.Sample()))
}

func TestStartStop(t *testing.T) {
	dir := t.TempDir()
	db := testDB(t)
	svc := NewService(Dependencies{Source: testSource(), DB: db, StatusDir: dir, Interval: 10 * time.Millisecond})

	require.NoError(t, svc.Start())
	assert.True(t, svc.IsRunning())
	require.NoError(t, svc.Start())

	assert.Eventually(t, func() bool {
		var count int64
		db.Model(&model.HealthSample{}).Count(&count)
		return count >= 2
	}, time.Second, 10*time.Millisecond)

	svc.Stop()
	assert.False(t, svc.IsRunning())
	svc.Stop()
}

func TestStart_RequiresSource(t *testing.T) {
	svc := NewService(Dependencies{})
	assert.Error(t, svc.Start())
	assert.False(t, svc.IsRunning())
}
