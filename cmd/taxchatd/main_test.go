package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/fiscus/taxchat/ingest"
	"github.com/fiscus/taxchat/web"
)

func stringFlag(t *testing.T, app *cli.App, name string) *cli.StringFlag {
	t.Helper()
	for _, flag := range app.Flags {
		if f, ok := flag.(*cli.StringFlag); ok && f.Name == name {
			return f
		}
	}
	t.Fatalf("string flag %q not found", name)
	return nil
}

func TestServeFlags(t *testing.T) {
	app := newApp()

	t.Run("addr defaults to the loopback listen address", func(t *testing.T) {
		assert.Equal(t, web.DefaultAddr, stringFlag(t, app, "addr").Value)
	})

	t.Run("db has a default path", func(t *testing.T) {
		assert.Equal(t, "./taxchat_db", stringFlag(t, app, "db").Value)
	})

	t.Run("api-key defaults to none for local servers", func(t *testing.T) {
		f := stringFlag(t, app, "api-key")
		assert.Equal(t, "none", f.Value)
		assert.Contains(t, f.EnvVars, "OPENAI_API_KEY")
	})

	t.Run("hosts default to the hosted OpenAI API", func(t *testing.T) {
		assert.Equal(t, "https://api.openai.com/v1", stringFlag(t, app, "embedding-host").Value)
		assert.Equal(t, "https://api.openai.com/v1", stringFlag(t, app, "chat-host").Value)
	})

	t.Run("job manager tunables default to the manager's values", func(t *testing.T) {
		var concurrencyFlag *cli.IntFlag
		var retentionFlag, staleFlag *cli.DurationFlag
		var sizeFlag *cli.Int64Flag
		for _, flag := range app.Flags {
			switch f := flag.(type) {
			case *cli.IntFlag:
				if f.Name == "concurrency" {
					concurrencyFlag = f
				}
			case *cli.Int64Flag:
				if f.Name == "max-file-size" {
					sizeFlag = f
				}
			case *cli.DurationFlag:
				switch f.Name {
				case "retention":
					retentionFlag = f
				case "stale-timeout":
					staleFlag = f
				}
			}
		}
		require.NotNil(t, concurrencyFlag)
		require.NotNil(t, sizeFlag)
		require.NotNil(t, retentionFlag)
		require.NotNil(t, staleFlag)
		assert.Equal(t, ingest.DefaultConcurrency, concurrencyFlag.Value)
		assert.EqualValues(t, ingest.DefaultMaxFileBytes, sizeFlag.Value)
		assert.Equal(t, ingest.DefaultRetention, retentionFlag.Value)
		assert.Equal(t, ingest.DefaultStaleTimeout, staleFlag.Value)
	})

	t.Run("every flag can come from the environment", func(t *testing.T) {
		for _, flag := range app.Flags {
			switch f := flag.(type) {
			case *cli.StringFlag:
				assert.NotEmpty(t, f.EnvVars, "flag %s", f.Name)
			case *cli.IntFlag:
				assert.NotEmpty(t, f.EnvVars, "flag %s", f.Name)
			case *cli.Int64Flag:
				assert.NotEmpty(t, f.EnvVars, "flag %s", f.Name)
			case *cli.DurationFlag:
				assert.NotEmpty(t, f.EnvVars, "flag %s", f.Name)
			case *cli.StringSliceFlag:
				assert.NotEmpty(t, f.EnvVars, "flag %s", f.Name)
			}
		}
	})
}

func TestSetupLogger(t *testing.T) {
	newTestApp := func() *cli.App {
		return &cli.App{
			Name: "test",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "log-level",
					Value: "info",
				},
			},
			Before: setupLogger,
			Action: func(c *cli.Context) error {
				return nil
			},
		}
	}

	t.Run("valid log levels", func(t *testing.T) {
		for _, level := range []string{"debug", "info", "warn", "error"} {
			t.Run(level, func(t *testing.T) {
				err := newTestApp().Run([]string{"test", "--log-level", level})
				require.NoError(t, err)
			})
		}
	})

	t.Run("case insensitive log levels", func(t *testing.T) {
		for _, level := range []string{"DEBUG", "Info", "WaRn", "ERROR"} {
			t.Run(level, func(t *testing.T) {
				err := newTestApp().Run([]string{"test", "--log-level", level})
				require.NoError(t, err)
			})
		}
	})

	t.Run("invalid log level returns error", func(t *testing.T) {
		err := newTestApp().Run([]string{"test", "--log-level", "loud"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
		assert.Contains(t, err.Error(), "loud")
	})
}
