//go:build ignore

package main

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

const minCoverage = 70.0

// Check test coverage meets minimum requirements. Run from the repository
// root with: go run scripts/check-coverage.go
func main() {
	fmt.Println("Checking test coverage requirements...")

	packages := []string{
		"./pkg/dmtable",
		"./pkg/pagemap",
		"./pkg/devicemapper",
		"./pkg/extent",
		"./internal/config",
		"./internal/output",
		"./internal/cli",
	}

	failures := 0

	for _, pkg := range packages {
		if _, err := os.Stat(pkg); os.IsNotExist(err) {
			fmt.Printf("Package %s does not exist, skipping\n", pkg)
			continue
		}

		coverage, err := getCoverage(pkg)
		if err != nil {
			fmt.Printf("FAIL %s: %v\n", pkg, err)
			failures++
			continue
		}
		if coverage < minCoverage {
			fmt.Printf("FAIL %s: %.1f%% coverage (minimum: %.1f%%)\n", pkg, coverage, minCoverage)
			failures++
		} else {
			fmt.Printf("ok   %s: %.1f%% coverage\n", pkg, coverage)
		}
	}

	if failures > 0 {
		fmt.Printf("%d package(s) below minimum coverage threshold\n", failures)
		os.Exit(1)
	}

	fmt.Println("All packages meet coverage requirements")
}

func getCoverage(pkg string) (float64, error) {
	profile, err := os.CreateTemp("", "coverage-*.out")
	if err != nil {
		return 0, err
	}
	profile.Close()
	defer os.Remove(profile.Name())

	cmd := exec.Command("go", "test", "-coverprofile="+profile.Name(), pkg)
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("tests failed: %w", err)
	}

	output, err := exec.Command("go", "tool", "cover", "-func="+profile.Name()).Output()
	if err != nil {
		return 0, err
	}

	// Parse coverage from output
	for _, line := range strings.Split(string(output), "\n") {
		if strings.Contains(line, "total:") {
			parts := strings.Fields(line)
			if len(parts) >= 3 {
				return strconv.ParseFloat(strings.TrimSuffix(parts[2], "%"), 64)
			}
		}
	}

	return 0, fmt.Errorf("no total in coverage report")
}
