package config

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func TestUseServerModeSet(t *testing.T) {
	var m UseServerMode
	require.NoError(t, m.Set("required"))
	require.Equal(t, UseServerRequired, m)
	require.Equal(t, "required", m.String())

	require.NoError(t, m.Set(""))
	require.Equal(t, UseServerAutomatic, m)

	require.Error(t, m.Set("bogus"))
}

func TestClientSettingsBindFlags(t *testing.T) {
	settings := Default()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	settings.BindFlags(fs)

	require.NoError(t, fs.Parse([]string{
		"--threads=8",
		"--purge",
		"--use-server=required",
		"--delta-threshold=2048",
	}))

	require.Equal(t, 8, settings.ThreadCount)
	require.True(t, settings.PurgeDestination)
	require.Equal(t, UseServerRequired, settings.UseServer)
	require.Equal(t, uint64(2048), settings.DeltaCompressionThreshold)
	// Untouched flags keep their defaults.
	require.Equal(t, 3, settings.RetryCount)
}

func TestServerSettingsBindFlags(t *testing.T) {
	settings := DefaultServer()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	settings.BindFlags(fs)

	require.NoError(t, fs.Parse([]string{"--max-downloads=10"}))
	require.Equal(t, 10, settings.MaxConcurrentDownloads)
	require.Equal(t, 18099, settings.Port)
}

func TestRetryWaitConvertsMillisecondsToDuration(t *testing.T) {
	settings := Default()
	settings.RetryWaitMs = 250
	require.Equal(t, 250_000_000, int(settings.RetryWait()))
}
