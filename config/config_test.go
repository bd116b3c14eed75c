package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
version = "1.2.0"

[server]
name = "segtree-demo"
environment = "test"

[log]
level = "debug"

[log.remote]
enabled = true
endpoint = "http://127.0.0.1:9/logs"
auth_token = "very-secret"

[metrics]
enabled = true
port = "9100"

[tree]
values = [1, 3, 5, 7, 9]
lenient_query = true
`

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "segtree.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, t.TempDir(), sampleConfig)

	conf, err := NewLoader().Load(path)
	require.NoError(t, err)

	assert.Equal(t, "segtree-demo", conf.Server.Name)
	assert.Equal(t, "test", conf.Server.Environment)
	assert.Equal(t, "debug", conf.Log.Level)
	assert.True(t, conf.Metrics.Enabled)
	assert.Equal(t, "9100", conf.Metrics.Port)
	assert.Equal(t, []int64{1, 3, 5, 7, 9}, conf.Tree.Values)
	assert.True(t, conf.Tree.LenientQuery)
	assert.Equal(t, "segtree", conf.Tracing.ServiceName)

	lc := conf.LoggingConfig("cli")
	assert.Equal(t, "segtree-demo", lc.Service)
	assert.Equal(t, "cli", lc.Module)
	assert.True(t, lc.Remote.Enabled)
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, t.TempDir(), sampleConfig)
	t.Setenv("APP_LOG_LEVEL", "warn")

	conf, err := NewLoader().Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", conf.Log.Level)
}

func TestLoadValidation(t *testing.T) {
	cases := map[string]string{
		"bad environment": "[server]\nname = \"x\"\nenvironment = \"staging\"\n",
		"bad level":       "[log]\nlevel = \"verbose\"\n",
		"tracing without endpoint": "[tracing]\nenabled = true\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), body)
			_, err := NewLoader().Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "config validation failed")
		})
	}

	_, err := NewLoader().Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config error")
}

func TestMaskedJSON(t *testing.T) {
	path := writeConfig(t, t.TempDir(), sampleConfig)
	conf, err := NewLoader().Load(path)
	require.NoError(t, err)

	out, err := MaskedJSON(conf)
	require.NoError(t, err)
	assert.NotContains(t, out, "very-secret")
	assert.Contains(t, out, "******")
	assert.Contains(t, out, "segtree-demo")
}

func TestWatchReload(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, sampleConfig)

	loader := NewLoader()
	_, err := loader.Load(path)
	require.NoError(t, err)

	reloaded := make(chan *Config, 16)
	loader.RegisterReloadHook(func(c *Config) {
		select {
		case reloaded <- c:
		default:
		}
	})
	loader.Watch()

	updated := "[server]\nname = \"segtree-demo\"\nenvironment = \"test\"\n\n[tree]\nvalues = [2, 4]\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))

	// 一次写入可能触发多个文件事件，等到读到完整的新配置为止。
	deadline := time.After(5 * time.Second)
	for {
		select {
		case c := <-reloaded:
			if len(c.Tree.Values) == 2 {
				assert.Equal(t, []int64{2, 4}, c.Tree.Values)
				return
			}
		case <-deadline:
			t.Fatal("config reload hook not called")
		}
	}
}

func TestDefault(t *testing.T) {
	conf := Default()
	require.NoError(t, NewLoader().validate.Struct(conf))
	assert.Equal(t, "segtree", conf.Server.Name)
	assert.Empty(t, conf.Tree.Values)
}
