package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/pflag"
)

type BenchmarkResult struct {
	Name       string  `json:"name"`
	Framework  string  `json:"framework"`
	Category   string  `json:"category"`
	Scenario   string  `json:"scenario"`
	Iterations int64   `json:"iterations"`
	NsPerOp    float64 `json:"ns_per_op"`
	BytesPerOp int64   `json:"bytes_per_op"`
	AllocsOp   int64   `json:"allocs_per_op"`
}

type CategoryResults struct {
	Category string
	Results  []BenchmarkResult
}

var frameworkColors = map[string]text.Colors{
	"Tether":         {text.FgGreen},
	"TetherParallel": {text.FgCyan},
	"Do":             {text.FgYellow},
	"Dig":            {text.FgMagenta},
	"Fx":             {text.FgBlue},
}

var categoryOrder = []string{
	"Invoke_Singleton", "Invoke_Transient", "Invoke_Chain",
	"Derived_Scoped", "Derived_Activation", "Derived_Prune100",
	"Lifecycle_10", "Lifecycle_50",
	"LifecycleWithWork_10",
}

var categoryTitles = map[string]string{
	"Invoke_Singleton":     "Service Resolution (Singleton)",
	"Invoke_Transient":     "Service Resolution (Transient)",
	"Invoke_Chain":         "Service Resolution (Dependency Chain)",
	"Derived_Scoped":       "Per-Request Dependencies (create and dispose)",
	"Derived_Activation":   "Derived Dependency Activation",
	"Derived_Prune100":     "Pruning 100 Collected Creators",
	"Lifecycle_10":         "Lifecycle Start/Stop (10 services)",
	"Lifecycle_50":         "Lifecycle Start/Stop (50 services)",
	"LifecycleWithWork_10": "Lifecycle with Work (10 services, 1ms each)",
}

var (
	benchPattern = regexp.MustCompile(`^Benchmark(\w+)-\d+\s+(\d+)\s+([\d.]+) ns/op\s+(\d+) B/op\s+(\d+) allocs/op`)
	namePattern  = regexp.MustCompile(`^([^_]+)_([^_]+)_(\w+)$`)
)

func main() {
	dir := pflag.StringP("dir", "d", "..", "directory holding the benchmarks")
	filter := pflag.StringP("bench", "b", ".", "benchmark name filter")
	count := pflag.IntP("count", "c", 3, "runs per benchmark")
	jsonOut := pflag.String("json", "", "write averaged results to this file")
	pflag.Parse()

	fmt.Println(text.Bold.Sprint(text.FgCyan.Sprint("Tether DI Benchmark Suite")))
	fmt.Println(text.Faint.Sprint("Running benchmarks..."))
	fmt.Println()

	cmd := exec.Command(
		"go", "test",
		"-bench="+*filter, "-benchmem", "-run=^$",
		"-count="+strconv.Itoa(*count), "-benchtime=100ms",
	)
	cmd.Dir = *dir
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintf(os.Stderr, "benchmark failed: %s\n", exitErr.Stderr)
		} else {
			fmt.Fprintf(os.Stderr, "benchmark failed: %v\n", err)
		}
		os.Exit(1)
	}

	results := parseResults(output)
	grouped := groupByCategory(results)

	for _, cat := range grouped {
		printCategory(cat)
	}
	printSummary(grouped)

	if *jsonOut != "" {
		if err := exportJSON(*jsonOut, results); err != nil {
			fmt.Fprintf(os.Stderr, "export failed: %v\n", err)
			os.Exit(1)
		}
	}
}

func parseResults(output []byte) []BenchmarkResult {
	runs := make(map[string][]BenchmarkResult)
	var order []string

	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		m := benchPattern.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}

		r := BenchmarkResult{Name: m[1]}
		r.Iterations, _ = strconv.ParseInt(m[2], 10, 64)
		r.NsPerOp, _ = strconv.ParseFloat(m[3], 64)
		r.BytesPerOp, _ = strconv.ParseInt(m[4], 10, 64)
		r.AllocsOp, _ = strconv.ParseInt(m[5], 10, 64)

		if parts := namePattern.FindStringSubmatch(r.Name); parts != nil {
			r.Category, r.Scenario, r.Framework = parts[1], parts[2], parts[3]
		} else {
			parts := strings.Split(r.Name, "_")
			r.Framework = parts[len(parts)-1]
			r.Category = parts[0]
			if len(parts) > 2 {
				r.Scenario = strings.Join(parts[1:len(parts)-1], "_")
			}
		}

		if _, ok := runs[r.Name]; !ok {
			order = append(order, r.Name)
		}
		runs[r.Name] = append(runs[r.Name], r)
	}

	results := make([]BenchmarkResult, 0, len(order))
	for _, name := range order {
		results = append(results, average(runs[name]))
	}
	return results
}

func average(runs []BenchmarkResult) BenchmarkResult {
	var ns float64
	var bytes, allocs int64
	for _, r := range runs {
		ns += r.NsPerOp
		bytes += r.BytesPerOp
		allocs += r.AllocsOp
	}
	n := float64(len(runs))

	avg := runs[0]
	avg.NsPerOp = ns / n
	avg.BytesPerOp = int64(float64(bytes) / n)
	avg.AllocsOp = int64(float64(allocs) / n)
	return avg
}

func groupByCategory(results []BenchmarkResult) []CategoryResults {
	groups := make(map[string][]BenchmarkResult)
	for _, r := range results {
		key := r.Category + "_" + r.Scenario
		groups[key] = append(groups[key], r)
	}

	var keys []string
	known := make(map[string]bool, len(categoryOrder))
	for _, k := range categoryOrder {
		known[k] = true
		if _, ok := groups[k]; ok {
			keys = append(keys, k)
		}
	}
	var extra []string
	for k := range groups {
		if !known[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	keys = append(keys, extra...)

	ordered := make([]CategoryResults, 0, len(keys))
	for _, k := range keys {
		rs := groups[k]
		sort.Slice(rs, func(i, j int) bool { return rs[i].NsPerOp < rs[j].NsPerOp })
		ordered = append(ordered, CategoryResults{Category: k, Results: rs})
	}
	return ordered
}

func printCategory(cat CategoryResults) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.SetTitle(formatCategoryTitle(cat.Category))
	t.AppendHeader(table.Row{"Framework", "Time/op", "B/op", "Allocs/op", "Relative"})
	t.SetColumnConfigs(
		[]table.ColumnConfig{
			{Number: 2, Align: text.AlignRight},
			{Number: 3, Align: text.AlignRight},
			{Number: 4, Align: text.AlignRight},
			{Number: 5, Align: text.AlignRight},
		},
	)

	fastest := cat.Results[0].NsPerOp
	for i, r := range cat.Results {
		relative := "fastest"
		if i > 0 && fastest > 0 {
			relative = fmt.Sprintf("%.1fx slower", r.NsPerOp/fastest)
		}

		name := r.Framework
		if colors, ok := frameworkColors[r.Framework]; ok {
			name = colors.Sprint(name)
		}
		t.AppendRow(table.Row{name, formatNs(r.NsPerOp), r.BytesPerOp, r.AllocsOp, relative})
	}

	t.Render()
	fmt.Println()
}

func formatCategoryTitle(cat string) string {
	if title, ok := categoryTitles[cat]; ok {
		return title
	}
	return strings.ReplaceAll(cat, "_", " ")
}

func formatNs(ns float64) string {
	switch {
	case ns >= 1_000_000:
		return fmt.Sprintf("%.2f ms", ns/1_000_000)
	case ns >= 1_000:
		return fmt.Sprintf("%.2f µs", ns/1_000)
	default:
		return fmt.Sprintf("%.0f ns", ns)
	}
}

func printSummary(groups []CategoryResults) {
	wins := make(map[string]int)
	for _, cat := range groups {
		if len(cat.Results) > 1 {
			wins[cat.Results[0].Framework]++
		}
	}

	names := make([]string, 0, len(wins))
	for name := range wins {
		names = append(names, name)
	}
	sort.Slice(
		names, func(i, j int) bool {
			if wins[names[i]] != wins[names[j]] {
				return wins[names[i]] > wins[names[j]]
			}
			return names[i] < names[j]
		},
	)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.SetTitle("Summary (contested categories)")
	t.AppendHeader(table.Row{"#", "Framework", "Wins"})
	for i, name := range names {
		t.AppendRow(table.Row{i + 1, name, wins[name]})
	}
	t.AppendFooter(table.Row{"", "Frameworks", "tether, samber/do, uber/dig, uber/fx"})
	t.Render()
}

func exportJSON(path string, results []BenchmarkResult) error {
	data, err := json.MarshalIndent(struct {
		Benchmarks []BenchmarkResult `json:"benchmarks"`
	}{results}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	fmt.Println(text.Faint.Sprintf("Results exported to %s", path))
	return nil
}
