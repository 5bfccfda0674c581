package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseOutput = `goos: linux
BenchmarkVerifyBearer-8   	   50000	     21000 ns/op	    4100 B/op	      52 allocs/op
BenchmarkVerifyBearer-8   	   50000	     23000 ns/op	    4100 B/op	      52 allocs/op
BenchmarkVerifyBearer-8   	   50000	     22000 ns/op	    4100 B/op	      52 allocs/op
BenchmarkWalletLogin-8    	    2000	    610000 ns/op
PASS
`

func TestParseCollectsTrackedSamples(t *testing.T) {
	got, err := parse(strings.NewReader(baseOutput), map[string][]string{"BenchmarkVerifyBearer": {"ns/op"}})
	require.NoError(t, err)

	assert.Equal(t, []float64{21000, 23000, 22000}, got["BenchmarkVerifyBearer"]["ns/op"])
	assert.Equal(t, []float64{52, 52, 52}, got["BenchmarkVerifyBearer"]["allocs/op"])
	assert.NotContains(t, got, "BenchmarkWalletLogin")
}

func TestCompareFlagsRegressions(t *testing.T) {
	tracked := map[string][]string{
		"BenchmarkVerifyBearer": {"ns/op", "allocs/op"},
		"BenchmarkWalletLogin":  {"ns/op"},
	}
	base, err := parse(strings.NewReader(baseOutput), tracked)
	require.NoError(t, err)

	candidate, err := parse(strings.NewReader(`
BenchmarkVerifyBearer-4   	   50000	     26000 ns/op	    4100 B/op	      52 allocs/op
BenchmarkWalletLogin-4    	    2000	    620000 ns/op
`), tracked)
	require.NoError(t, err)

	rows, failures := compare(base, candidate, tracked, 0.30)
	require.Len(t, rows, 3)
	assert.Empty(t, failures)
	assert.InDelta(t, 4000.0/22000.0, rows[0].delta, 1e-9)

	rows, failures = compare(base, candidate, tracked, 0.10)
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0], "BenchmarkVerifyBearer ns/op")
	assert.Len(t, rows, 3)
}

func TestCompareReportsMissingSamples(t *testing.T) {
	tracked := map[string][]string{"BenchmarkLoginWithPassword": {"ns/op"}}
	_, failures := compare(samples{}, samples{}, tracked, 0.3)
	assert.Equal(t, []string{"BenchmarkLoginWithPassword ns/op: no samples"}, failures)
}

func TestParseTrack(t *testing.T) {
	got, err := parseTrack("BenchmarkA:ns/op, BenchmarkA:allocs/op,BenchmarkB:ns/op")
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{
		"BenchmarkA": {"ns/op", "allocs/op"},
		"BenchmarkB": {"ns/op"},
	}, got)

	_, err = parseTrack("BenchmarkA")
	assert.Error(t, err)
}

func TestStripProcs(t *testing.T) {
	assert.Equal(t, "BenchmarkX", stripProcs("BenchmarkX-16"))
	assert.Equal(t, "BenchmarkX-fast", stripProcs("BenchmarkX-fast"))
	assert.Equal(t, "BenchmarkX", stripProcs("BenchmarkX"))
}
