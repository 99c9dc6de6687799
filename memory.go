package main

import (
	"bufio"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

const samplingInterval = 10 * time.Millisecond

var rssBytesFunc = rssBytes

// runMeasurement is the cost of one summarization run.
type runMeasurement struct {
	Duration time.Duration
	// PeakRSS is the highest resident set size sampled while the run was in
	// progress, in bytes.
	PeakRSS float64
}

// measureRun calls fn while sampling the resident set size in the
// background.
func measureRun(fn func() error) (runMeasurement, error) {
	baseline := rssBytesFunc()

	var mu sync.Mutex
	peak := baseline
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(samplingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				current := rssBytesFunc()
				mu.Lock()
				if current > peak {
					peak = current
				}
				mu.Unlock()
			case <-stop:
				return
			}
		}
	}()

	start := time.Now()
	err := fn()
	m := runMeasurement{Duration: time.Since(start)}
	close(stop)
	wg.Wait()

	mu.Lock()
	m.PeakRSS = peak
	mu.Unlock()
	return m, err
}

func rssBytes() float64 {
	if runtime.GOOS == "linux" {
		for _, source := range []func() float64{rssFromProcStatm, rssFromProcStatus} {
			if v := source(); v > 0 {
				return v
			}
		}
	}
	return rssFromPS()
}

func rssFromProcStatm() float64 {
	data, err := os.ReadFile("/proc/self/statm")
	if err != nil {
		return 0
	}
	fields := strings.Fields(string(data))
	if len(fields) < 2 {
		return 0
	}
	pages, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return 0
	}
	return float64(pages * uint64(os.Getpagesize()))
}

func rssFromProcStatus() float64 {
	file, err := os.Open("/proc/self/status")
	if err != nil {
		return 0
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if v, ok := strings.CutPrefix(scanner.Text(), "VmRSS:"); ok {
			return parseKilobytes(v)
		}
	}
	return 0
}

func rssFromPS() float64 {
	output, err := exec.Command("ps", "-o", "rss=", "-p", strconv.Itoa(os.Getpid())).Output()
	if err != nil {
		return 0
	}
	return parseKilobytes(string(output))
}

// parseKilobytes reads the leading number of s as a kB count and returns
// bytes, or 0 if there is none.
func parseKilobytes(s string) float64 {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0
	}
	kb, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return 0
	}
	return float64(kb * 1024)
}
