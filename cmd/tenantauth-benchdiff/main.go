// Command tenantauth-benchdiff compares two `go test -bench` outputs and
// exits non-zero when a tracked engine benchmark got slower than allowed.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// defaultTracked lists the engine benchmarks and the units checked for each.
var defaultTracked = map[string][]string{
	"BenchmarkVerifyBearer":      {"ns/op", "allocs/op"},
	"BenchmarkWalletLogin":       {"ns/op"},
	"BenchmarkLoginWithPassword": {"ns/op"},
}

// samples maps benchmark name to unit to every value seen across -count runs.
type samples map[string]map[string][]float64

type row struct {
	benchmark string
	unit      string
	base      float64
	candidate float64
	delta     float64
}

func main() {
	var (
		basePath      string
		candidatePath string
		threshold     float64
		track         string
	)
	flag.StringVar(&basePath, "base", "", "benchmark output of the reference build")
	flag.StringVar(&candidatePath, "candidate", "", "benchmark output of the build under test")
	flag.Float64Var(&threshold, "threshold", 0.30, "allowed slowdown ratio")
	flag.StringVar(&track, "track", "", "comma-separated Name:unit pairs overriding the default set")
	flag.Parse()

	if basePath == "" || candidatePath == "" {
		fmt.Fprintln(os.Stderr, "-base and -candidate are required")
		os.Exit(2)
	}
	if threshold < 0 {
		fmt.Fprintln(os.Stderr, "-threshold must be >= 0")
		os.Exit(2)
	}

	tracked := defaultTracked
	if track != "" {
		var err error
		if tracked, err = parseTrack(track); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
	}

	base, err := readFile(basePath, tracked)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read base: %v\n", err)
		os.Exit(1)
	}
	candidate, err := readFile(candidatePath, tracked)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read candidate: %v\n", err)
		os.Exit(1)
	}

	rows, failures := compare(base, candidate, tracked, threshold)
	for _, r := range rows {
		fmt.Printf("%-28s %-10s %14.1f %14.1f %+7.2f%%\n", r.benchmark, r.unit, r.base, r.candidate, r.delta*100)
	}
	if len(failures) > 0 {
		fmt.Fprintln(os.Stderr, "regressions:")
		for _, f := range failures {
			fmt.Fprintf(os.Stderr, "  %s\n", f)
		}
		os.Exit(1)
	}
}

func parseTrack(s string) (map[string][]string, error) {
	out := map[string][]string{}
	for _, pair := range strings.Split(s, ",") {
		name, unit, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok || name == "" || unit == "" {
			return nil, fmt.Errorf("bad -track entry %q, want Name:unit", pair)
		}
		out[name] = append(out[name], unit)
	}
	return out, nil
}

func readFile(path string, tracked map[string][]string) (samples, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parse(f, tracked)
}

// parse collects the value/unit pairs of every tracked benchmark line in r.
func parse(r io.Reader, tracked map[string][]string) (samples, error) {
	out := samples{}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 4 || !strings.HasPrefix(fields[0], "Benchmark") {
			continue
		}
		name := stripProcs(fields[0])
		if _, ok := tracked[name]; !ok {
			continue
		}
		if out[name] == nil {
			out[name] = map[string][]float64{}
		}
		// fields[1] is the iteration count.
		for i := 2; i+1 < len(fields); i += 2 {
			v, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				continue
			}
			out[name][fields[i+1]] = append(out[name][fields[i+1]], v)
		}
	}
	return out, sc.Err()
}

// compare reports the median change of every tracked benchmark/unit pair, in
// name order, plus one failure line per regression or missing sample.
func compare(base, candidate samples, tracked map[string][]string, threshold float64) ([]row, []string) {
	names := make([]string, 0, len(tracked))
	for name := range tracked {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		rows     []row
		failures []string
	)
	for _, name := range names {
		for _, unit := range tracked[name] {
			b, c := base[name][unit], candidate[name][unit]
			if len(b) == 0 || len(c) == 0 {
				failures = append(failures, fmt.Sprintf("%s %s: no samples", name, unit))
				continue
			}
			bm, cm := median(b), median(c)
			if bm <= 0 {
				// Zero allocs stays fine as long as it stays zero.
				if cm > 0 {
					failures = append(failures, fmt.Sprintf("%s %s: was 0, now %.1f", name, unit, cm))
				}
				rows = append(rows, row{benchmark: name, unit: unit, base: bm, candidate: cm})
				continue
			}
			d := (cm - bm) / bm
			rows = append(rows, row{benchmark: name, unit: unit, base: bm, candidate: cm, delta: d})
			if d > threshold {
				failures = append(failures, fmt.Sprintf("%s %s: %+.2f%% (limit %+.2f%%)", name, unit, d*100, threshold*100))
			}
		}
	}
	return rows, failures
}

// stripProcs removes the -GOMAXPROCS suffix go test appends to names.
func stripProcs(name string) string {
	if i := strings.LastIndexByte(name, '-'); i > 0 {
		if _, err := strconv.Atoi(name[i+1:]); err == nil {
			return name[:i]
		}
	}
	return name
}

func median(v []float64) float64 {
	s := append([]float64(nil), v...)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}
