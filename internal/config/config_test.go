package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(body), 0644))
	return dir
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"logLevel": "debug",
		"session": { "scheme": "tcp", "path": "" },
		"settings": { "type": "memory" }
	}`)

	err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "debug", viper.GetString("logLevel"))
	assert.Equal(t, "tcp", viper.GetString("session.scheme"))
	assert.Equal(t, "", viper.GetString("session.path"))
	assert.Equal(t, "memory", viper.GetString("settings.type"))
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{}`)))

	assert.Equal(t, "info", viper.GetString("logLevel"))
	assert.Equal(t, "./logs", viper.GetString("logsDir"))
	assert.Equal(t, "sqlite", viper.GetString("settings.type"))
	assert.Equal(t, "./companion.db", viper.GetString("settings.sqlite.path"))
	assert.Equal(t, "localhost", viper.GetString("settings.postgres.host"))
	assert.Equal(t, "5432", viper.GetString("settings.postgres.port"))
	assert.Equal(t, false, viper.GetBool("influx.enabled"))
	assert.Equal(t, false, viper.GetBool("graylog.enabled"))
	assert.Equal(t, "localhost:12201", viper.GetString("graylog.address"))
	assert.Equal(t, 30*time.Second, viper.GetDuration("monitor.interval"))
}

func TestLoad_MissingFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load("/nonexistent/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")

	// defaults are still usable
	assert.Equal(t, "ws", GetSessionConfig().Scheme)
}

func TestGetString(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testKey", "testValue")
	assert.Equal(t, "testValue", GetString("testKey"))
}

func TestGetInt(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testInt", 42)
	assert.Equal(t, 42, GetInt("testInt"))
}

func TestGetBool(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testBool", true)
	assert.Equal(t, true, GetBool("testBool"))
}

func TestGetSessionConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	sc := GetSessionConfig()
	assert.Equal(t, "ws", sc.Scheme)
	assert.Equal(t, "/mqtt", sc.Path)
	assert.Equal(t, "cat-detector-gui", sc.ClientIDPrefix)
	assert.Equal(t, 5*time.Second, sc.ReconnectDelay)
	assert.Equal(t, 5*time.Second, sc.ConnectTimeout)
	assert.Equal(t, byte(0), sc.PublishQoS)
}

func TestGetSessionConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"session": { "reconnectDelay": "2s", "publishQos": 1, "clientIdPrefix": "kitchen" }
	}`)))

	sc := GetSessionConfig()
	assert.Equal(t, 2*time.Second, sc.ReconnectDelay)
	assert.Equal(t, byte(1), sc.PublishQoS)
	assert.Equal(t, "kitchen", sc.ClientIDPrefix)
}

func TestGetSessionConfig_ClampsQoS(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("session.publishQos", 7)
	assert.Equal(t, byte(0), GetSessionConfig().PublishQoS)
}

func TestGetSettingsConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"settings": {
			"type": "postgres",
			"postgres": { "host": "10.0.0.1", "port": "5433", "database": "cats" }
		}
	}`)))

	sc := GetSettingsConfig()
	assert.Equal(t, "postgres", sc.Type)
	assert.Equal(t, "10.0.0.1", sc.Postgres.Host)
	assert.Equal(t, "5433", sc.Postgres.Port)
	assert.Equal(t, "postgres", sc.Postgres.Username)
	assert.Equal(t, "cats", sc.Postgres.Database)
}

func TestGetInfluxConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{"influx": {"enabled": true, "host": "influx.lan"}}`)))

	ic := GetInfluxConfig()
	assert.True(t, ic.Enabled)
	assert.Equal(t, "http://influx.lan:8086", ic.URL())
	assert.Equal(t, "cat-detector", ic.Org)
	assert.Equal(t, "companion", ic.Bucket)
}

func TestGetScriptDefaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	sd := GetScriptDefaults()
	assert.Equal(t, 0.55, sd.Confidence)
	assert.Equal(t, 10, sd.Cooldown)
}

func TestGetGraylogConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{"graylog": {"enabled": true, "address": "gl:12201"}}`)))

	gc := GetGraylogConfig()
	assert.True(t, gc.Enabled)
	assert.Equal(t, "gl:12201", gc.Address)
}

func TestGetMonitorInterval(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("monitor.interval", "1m")
	assert.Equal(t, time.Minute, GetMonitorInterval())
}

func TestGetAPIConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{"api": {"enabled": true}}`)))

	ac := GetAPIConfig()
	assert.True(t, ac.Enabled)
	assert.Equal(t, "127.0.0.1:8080", ac.Address)
}
