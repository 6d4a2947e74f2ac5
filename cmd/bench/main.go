package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"gopkg.in/yaml.v3"

	"github.com/i5heu/GoBoundedQueue/internal/queue"
	"github.com/i5heu/GoBoundedQueue/internal/testbench"
	"github.com/i5heu/GoBoundedQueue/pkg/blockingqueue"
	"github.com/i5heu/GoBoundedQueue/pkg/blockingring"
)

// BenchmarkResult holds results for one test run.
type BenchmarkResult struct {
	Implementation      string  `json:"implementation"`
	NumProducers        int     `json:"num_producers"`
	NumConsumers        int     `json:"num_consumers"`
	Capacity            int     `json:"capacity"`
	NumMessages         int64   `json:"num_messages"`          // produced count
	NumMessagesConsumed int64   `json:"num_messages_consumed"` // consumed count
	TestDuration        string  `json:"test_duration"`         // e.g. "5s"
	ActualElapsed       string  `json:"actual_elapsed"`        // measured time
	Throughput          float64 `json:"throughput_msgs_sec"`   // based on consumed count
	Timestamp           int64   `json:"timestamp"`
	GoVersion           string  `json:"go_version"`
}

// SystemInfo holds system information.
type SystemInfo struct {
	NumCPU            int     `json:"num_cpu"`
	TrueCPU           int     `json:"true_cpu,omitempty"`
	SimulatedCPUCount int     `json:"simulated_cpu_count,omitempty"`
	CPUModel          string  `json:"cpu_model,omitempty"`
	CPUSpeedMHz       float64 `json:"cpu_speed_mhz,omitempty"`
	GOARCH            string  `json:"go_arch"`
	TotalMemory       uint64  `json:"total_memory_bytes,omitempty"`
}

// FullReport represents a complete test session.
type FullReport struct {
	SessionTime string            `json:"session_time"`
	SystemInfo  SystemInfo        `json:"system_info"`
	Benchmarks  []BenchmarkResult `json:"benchmarks"`
}

// Implementation represents a queue implementation under test.
type Implementation struct {
	name        string
	description string
	pkgName     string
	features    []string
	newQueue    func(capacity int) queue.BlockingQueue[*int]
}

// scenarioEntry is one producer/consumer pairing from the scenario file.
type scenarioEntry struct {
	Producers int `yaml:"producers"`
	Consumers int `yaml:"consumers"`
}

// scenarioFile is the optional YAML run configuration.
type scenarioFile struct {
	Duration  string          `yaml:"duration"`
	Capacity  int             `yaml:"capacity"`
	Scenarios []scenarioEntry `yaml:"scenarios"`
}

// loadScenarios reads the YAML scenario file and converts it into concurrency
// configs, overriding duration and capacity when the file sets them.
func loadScenarios(path string, duration *time.Duration, capacity *int) ([]testbench.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario file %q: %w", path, err)
	}
	var sf scenarioFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parsing scenario file %q: %w", path, err)
	}
	if sf.Duration != "" {
		d, err := time.ParseDuration(sf.Duration)
		if err != nil {
			return nil, fmt.Errorf("invalid duration %q in %q: %w", sf.Duration, path, err)
		}
		*duration = d
	}
	if sf.Capacity > 0 {
		*capacity = sf.Capacity
	}
	var configs []testbench.Config
	for _, s := range sf.Scenarios {
		if s.Producers < 1 || s.Consumers < 1 {
			return nil, fmt.Errorf("scenario needs at least one producer and one consumer, got producers=%d consumers=%d", s.Producers, s.Consumers)
		}
		configs = append(configs, testbench.Config{NumProducers: s.Producers, NumConsumers: s.Consumers})
	}
	return configs, nil
}

// outputMarkdownTable loads the JSON file and outputs a Markdown table.
func outputMarkdownTable(jsonFile string) {
	data, err := os.ReadFile(jsonFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading JSON file %q: %v\n", jsonFile, err)
		os.Exit(1)
	}
	var sessions []FullReport
	if err := json.Unmarshal(data, &sessions); err != nil {
		fmt.Fprintf(os.Stderr, "Error unmarshalling JSON: %v\n", err)
		os.Exit(1)
	}
	if len(sessions) == 0 {
		fmt.Fprintln(os.Stderr, "No sessions found in JSON.")
		os.Exit(1)
	}
	// Use the last session for the table.
	lastSession := sessions[len(sessions)-1]
	implMetaMap := make(map[string]Implementation)
	for _, impl := range getImplementations() {
		implMetaMap[impl.name] = impl
	}
	type tableRow struct {
		implementation string
		pkgName        string
		features       string
		throughput     float64
	}
	var rows []tableRow
	for _, bench := range lastSession.Benchmarks {
		meta, ok := implMetaMap[bench.Implementation]
		var pkgName, features string
		if ok {
			pkgName = meta.pkgName
			features = strings.Join(meta.features, ", ")
		}
		rows = append(rows, tableRow{
			implementation: bench.Implementation,
			pkgName:        pkgName,
			features:       features,
			throughput:     bench.Throughput,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].throughput > rows[j].throughput
	})
	fmt.Println("## Last Session Benchmark Summary")
	fmt.Println()
	fmt.Println("| Implementation           | Package         | Features                          | Throughput (msgs/sec) |")
	fmt.Println("|--------------------------|-----------------|-----------------------------------|-----------------------|")
	for _, r := range rows {
		fmt.Printf("| %-24s | %-15s | %-33s | %21.0f |\n",
			r.implementation, r.pkgName, r.features, r.throughput)
	}
}

func main() {
	// Flags.
	testIterations := flag.Int("iter", 5, "Number of test iterations per concurrency setting")
	cpuMaxFlag := flag.Int("cpu", 0, "If non-zero, test only that GOMAXPROCS value; if 0, test common CPU/vCPU values up to runtime.NumCPU()")
	jsonExport := flag.Bool("json", false, "Export results as JSON to test-results.json")
	scenariosPath := flag.String("scenarios", "", "Path to a YAML scenario file (producers/consumers pairs, duration, capacity)")
	markdownTable := flag.Bool("markdown-table", false, "Output markdown table from test-results.json and exit")
	jsonFileForMarkdown := flag.String("jsonfile", "test-results.json", "Path to JSON file for markdown table")
	progressFlag := flag.Bool("progress", false, "Display a progress bar with ETA")
	durationFlag := flag.Duration("duration", 5*time.Second, "Duration of each test iteration")
	capacityFlag := flag.Int("capacity", 1024, "Queue capacity used for each run")
	flag.Parse()

	if *markdownTable {
		outputMarkdownTable(*jsonFileForMarkdown)
		return
	}

	trueCpuCount := runtime.NumCPU()
	var cpuSettings []int
	// Define the common CPU/vCPU settings.
	commonCPUs := []int{1, 2, 3, 4, 6, 8, 12, 16, 32, 48, 56, 64, 96, 128, 192, 256, 384, 512}

	if *cpuMaxFlag > 0 {
		desired := *cpuMaxFlag
		if desired > trueCpuCount {
			desired = trueCpuCount
		}
		cpuSettings = []int{desired}
	} else {
		for _, v := range commonCPUs {
			if v <= trueCpuCount {
				cpuSettings = append(cpuSettings, v)
			}
		}
	}

	testDuration := *durationFlag
	capacity := *capacityFlag

	// Concurrency configurations: defaults, or the scenario file.
	concurrencyConfigs := []testbench.Config{
		{NumProducers: 2, NumConsumers: 2},
		{NumProducers: 10, NumConsumers: 10},
		{NumProducers: 50, NumConsumers: 50},
	}
	if *scenariosPath != "" {
		loaded, err := loadScenarios(*scenariosPath, &testDuration, &capacity)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		if len(loaded) > 0 {
			concurrencyConfigs = loaded
		}
	}

	impls := getImplementations()
	totalTests := len(cpuSettings) * len(concurrencyConfigs) * (*testIterations) * len(impls)
	var bar *progressbar.ProgressBar
	if *progressFlag {
		bar = progressbar.NewOptions(totalTests,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("benchmarking"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(true),
		)
	}

	var allSessions []FullReport

	// Iterate over the desired GOMAXPROCS settings.
	for _, cpus := range cpuSettings {
		runtime.GOMAXPROCS(cpus)
		sysInfo := gatherSystemInfo()
		sysInfo.NumCPU = cpus
		sysInfo.TrueCPU = trueCpuCount
		sysInfo.SimulatedCPUCount = cpus

		fmt.Printf("\n=============================\n")
		fmt.Printf("GOMAXPROCS = %d\n", cpus)
		fmt.Printf("=============================\n")

		var results []BenchmarkResult

		for _, cfg := range concurrencyConfigs {
			fmt.Printf("  [Concurrency: producers=%d, consumers=%d, capacity=%d]\n", cfg.NumProducers, cfg.NumConsumers, capacity)
			for iteration := 1; iteration <= *testIterations; iteration++ {
				fmt.Printf("    iteration %d/%d\n", iteration, *testIterations)
				for _, impl := range impls {
					runtime.GC()
					q := impl.newQueue(capacity)
					time.Sleep(250 * time.Millisecond)

					produced, consumed, actualTime := testbench.RunTimedTest(
						q,
						cfg,
						testDuration,
						func(i int) *int {
							v := i
							return &v
						},
					)
					_ = q.Close()

					throughput := float64(consumed) / actualTime.Seconds()

					fmt.Printf("    %s => produced=%d, consumed=%d, throughput=%.0f msg/s, took=%v\n",
						impl.name, produced, consumed, throughput, actualTime)
					if bar != nil {
						_ = bar.Add(1)
					}

					results = append(results, BenchmarkResult{
						Implementation:      impl.name,
						NumProducers:        cfg.NumProducers,
						NumConsumers:        cfg.NumConsumers,
						Capacity:            capacity,
						NumMessages:         produced,
						NumMessagesConsumed: consumed,
						TestDuration:        testDuration.String(),
						ActualElapsed:       actualTime.String(),
						Throughput:          throughput,
						Timestamp:           time.Now().Unix(),
						GoVersion:           runtime.Version(),
					})
				}
			}
		}

		allSessions = append(allSessions, FullReport{
			SessionTime: time.Now().Format(time.RFC3339),
			SystemInfo:  sysInfo,
			Benchmarks:  results,
		})
	}

	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(os.Stderr)
	}

	// If JSON export is requested, append the new sessions to test-results.json.
	if *jsonExport {
		const filename = "test-results.json"
		var previous []FullReport
		if _, err := os.Stat(filename); err == nil {
			data, err := os.ReadFile(filename)
			if err == nil && len(data) > 0 {
				json.Unmarshal(data, &previous)
			}
		}
		updated := append(previous, allSessions...)
		data, err := json.MarshalIndent(updated, "", "  ")
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error marshalling JSON:", err)
			os.Exit(1)
		}
		if err = os.WriteFile(filename, data, 0644); err != nil {
			fmt.Fprintln(os.Stderr, "Error writing JSON file:", err)
			os.Exit(1)
		}
		fmt.Printf("\nWrote results to %s\n", filename)
	}
}

// gatherSystemInfo collects basic CPU and memory details.
func gatherSystemInfo() SystemInfo {
	numCPU := runtime.NumCPU()
	goArch := runtime.GOARCH

	var cpuModel string
	var cpuSpeed float64
	if infos, err := cpu.Info(); err == nil && len(infos) > 0 {
		cpuModel = infos[0].ModelName
		cpuSpeed = infos[0].Mhz
	}

	var totalMemory uint64
	if vm, err := mem.VirtualMemory(); err == nil {
		totalMemory = vm.Total
	}

	return SystemInfo{
		NumCPU:      numCPU,
		CPUModel:    cpuModel,
		CPUSpeedMHz: cpuSpeed,
		GOARCH:      goArch,
		TotalMemory: totalMemory,
	}
}

// getImplementations enumerates the queue implementations under test.
func getImplementations() []Implementation {
	return []Implementation{
		{
			name:        "LinkedBlockingQueue",
			pkgName:     "blockingqueue",
			description: "Mutex and two condition variables over a singly-linked node chain; allocates one node per item.",
			features:    []string{"Blocking", "FIFO", "Bounded", "Interruptible"},
			newQueue: func(capacity int) queue.BlockingQueue[*int] {
				return blockingqueue.New[*int](capacity)
			},
		},
		{
			name:        "RingBlockingQueue",
			pkgName:     "blockingring",
			description: "Same blocking contract over a preallocated circular buffer; no per-item allocation.",
			features:    []string{"Blocking", "FIFO", "Bounded", "Interruptible", "Preallocated"},
			newQueue: func(capacity int) queue.BlockingQueue[*int] {
				return blockingring.New[*int](capacity)
			},
		},
	}
}
