package cli

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/ohlcv/journal"
	"github.com/rustyeddy/ohlcv/market"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out, logs bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&logs)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "ohlcv dev\n", out)
}

func TestConfigInitAndValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ohlcv.yaml")

	out, err := run(t, "config", "init", "--output", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	out, err = run(t, "config", "validate", "--file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration valid")
	assert.Contains(t, out, "Resample: M1 (interpolate=true, flush=false)")

	_, err = run(t, "config", "validate")
	require.Error(t, err)
}

func TestResampleToCSV(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "trades.csv")
	out := filepath.Join(dir, "candles.csv")
	require.NoError(t, os.WriteFile(in, []byte("100,1,30\n101,2,45\n105,1,125\n"), 0o644))

	report, err := run(t, "--log-level", "debug", "resample", "--in", in, "--out", out, "-g", "M1")
	require.NoError(t, err)
	assert.Contains(t, report, "Candles: 2")
	assert.Contains(t, report, "Discarded: 1")

	b, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, strings.Join([]string{
		"interval_start,open,high,low,close,volume,synthetic",
		"60,100,101,100,101,3,0",
		"120,103,103,103,103,0,1",
	}, "\n")+"\n", string(b))

	_, err = run(t, "resample", "--in", in, "--out", out, "--interpolate=false", "--flush")
	require.NoError(t, err)
	b, err = os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, strings.Join([]string{
		"interval_start,open,high,low,close,volume,synthetic",
		"60,100,101,100,101,3,0",
		"180,105,105,105,105,1,0",
	}, "\n")+"\n", string(b))
}

func TestResampleRejectsGranularity(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "trades.csv")
	require.NoError(t, os.WriteFile(in, []byte("100,1,30\n"), 0o644))

	_, err := run(t, "resample", "--in", in, "--out", filepath.Join(dir, "c.csv"), "-g", "M2")
	require.ErrorIs(t, err, market.ErrUnsupportedGranularity)

	_, err = os.Stat(filepath.Join(dir, "c.csv"))
	assert.True(t, os.IsNotExist(err))
}

func TestFetchTrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("since") == "0" {
			_, _ = w.Write([]byte(`{"error":[],"result":{"XXBTZUSD":[["100.0","1.5",30.25,"b","l",""]],"last":"30250000000"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"error":[],"result":{"XXBTZUSD":[],"last":"30250000000"}}`))
	}))
	defer srv.Close()

	out := filepath.Join(t.TempDir(), "trades.csv")
	report, err := run(t, "fetch", "trades", "--base-url", srv.URL, "--pair", "XXBTZUSD", "--out", out)
	require.NoError(t, err)
	assert.Contains(t, report, "1 trades appended")

	b, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "price,volume,time,buy/sell,market/limit,misc\n100,1.5,30.25,b,l,\n", string(b))

	_, err = run(t, "fetch", "trades", "--base-url", srv.URL, "--out", out+".xz")
	require.Error(t, err)
}

func TestFetchDepth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":[],"result":{"XXBTZUSD":{
			"asks":[["101.0","1.0",1688669448]],
			"bids":[["99.0","1.5",1688669447],["98.0","2.0",1688669446]]}}}`))
	}))
	defer srv.Close()

	db := filepath.Join(t.TempDir(), "books.db")
	report, err := run(t, "fetch", "depth", "--base-url", srv.URL, "--pair", "XXBTZUSD", "--db", db, "--iterations", "2", "--interval", "1ms")
	require.NoError(t, err)
	assert.Contains(t, report, "6 order book levels stored")

	j, err := journal.NewSQLite(db)
	require.NoError(t, err)
	defer j.Close()

	n, err := j.CountOrderBookRows(context.Background(), "XXBTZUSD")
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	_, err = run(t, "fetch", "depth", "--base-url", srv.URL, "--output-type", "csv")
	require.Error(t, err)
}
