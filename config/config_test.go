package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XC-/bluing"
)

func writeConfig(t *testing.T, body string) string {
	p := filepath.Join(t.TempDir(), "bluing.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Validate(Default()))
}

func TestLoad(t *testing.T) {
	p := writeConfig(t, `
device: 1
inquiry:
  duration_units: 4
  name_rate: 2.5
le_scan:
  mode: passive
  timeout: 3s
gatt:
  request_timeout: 1500ms
infer:
  match: word
sniff:
  devices: [/dev/ttyACM0, /dev/ttyACM1]
  channels: [37, 38]
`)
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Device)
	assert.Equal(t, uint8(4), cfg.Inquiry.DurationUnits)
	assert.Equal(t, 2.5, cfg.Inquiry.NameRate)
	assert.Equal(t, "passive", cfg.LEScan.Mode)
	assert.Equal(t, 3*time.Second, cfg.LEScan.Timeout)
	assert.Equal(t, "rssi", cfg.LEScan.Sort, "unset fields keep their default")
	assert.Equal(t, 1500*time.Millisecond, cfg.GATT.RequestTimeout)
	assert.Equal(t, "word", cfg.Infer.Match)
	assert.Equal(t, []uint8{37, 38}, cfg.Sniff.Channels)
	assert.Equal(t, 16, cfg.SDP.MaxNesting)
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("BLUING_DEVICE", "2")
	t.Setenv("BLUING_LOG_LEVEL", "debug")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Device)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadInvalid(t *testing.T) {
	cases := []struct {
		body string
		want string
	}{
		{"inquiry:\n  duration_units: 0x31\n", "inquiry.duration_units"},
		{"le_scan:\n  mode: loud\n", "le_scan.mode"},
		{"le_scan:\n  sort: name\n", "le_scan.sort"},
		{"infer:\n  match: fuzzy\n", "infer.match"},
		{"sniff:\n  channels: [40]\n", "sniff.channels"},
		{"logging:\n  level: chatty\n", "logging.level"},
		{"logging:\n  format: xml\n", "logging.format"},
		{"device: -1\n", "device"},
	}
	for _, c := range cases {
		_, err := Load(writeConfig(t, c.body))
		if !assert.ErrorIs(t, err, bluing.ErrInvalid, c.body) {
			continue
		}
		assert.Contains(t, err.Error(), c.want)
	}

	_, err := Load(writeConfig(t, "device: [\n"))
	assert.Error(t, err)
}

func TestLoggingApply(t *testing.T) {
	assert.NoError(t, LoggingConfig{Level: "warn", Format: "json"}.Apply())
	assert.ErrorIs(t, LoggingConfig{Level: "loud"}.Apply(), bluing.ErrInvalid)
	require.NoError(t, LoggingConfig{Level: "info", Format: "text"}.Apply())
}
