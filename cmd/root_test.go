package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/subsidy-portal/internal/config"
	"github.com/JakeFAU/subsidy-portal/internal/crawl"
)

func withConfig(t *testing.T, fn func(string) (config.Config, error)) {
	t.Helper()
	prev := loadConfig
	loadConfig = fn
	t.Cleanup(func() { loadConfig = prev })
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCrawlPrintsMockPageWithoutPartnerKey(t *testing.T) {
	withConfig(t, func(path string) (config.Config, error) {
		cfg, err := config.Load(path)
		if err != nil {
			return cfg, err
		}
		cfg.Upstream.Partner.APIKey = ""
		cfg.Logging.Development = false
		cfg.Logging.Level = "error"
		return cfg, nil
	})

	out, err := run(t, "crawl", "--industry", "제조업", "--size", "5")
	require.NoError(t, err)

	var page crawl.Page
	require.NoError(t, json.Unmarshal([]byte(out), &page))
	require.True(t, page.Degraded)
	require.Equal(t, crawl.MockResultCode, page.ResultCode)
	require.Len(t, page.Items, 1)
	require.Equal(t, 1, page.Page)
	require.Equal(t, 5, page.Size)
}

func TestCrawlRejectsNonPositivePage(t *testing.T) {
	withConfig(t, func(string) (config.Config, error) {
		return config.Load("")
	})

	_, err := run(t, "crawl", "--page", "0")
	require.ErrorContains(t, err, "page and size must be positive")
}

func TestConfigErrorsStopSubcommands(t *testing.T) {
	withConfig(t, func(string) (config.Config, error) {
		return config.Config{}, errors.New("boom")
	})

	_, err := run(t, "serve")
	require.ErrorContains(t, err, "load config: boom")
}
