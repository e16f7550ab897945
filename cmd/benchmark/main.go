// ABOUTME: Command-line runner for the end-to-end memory scenarios
// ABOUTME: Executes scenarios against a live API key and writes JSON results
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/harper/hmlr/benchmarks/scenarios"
)

func main() {
	scenarioID := flag.String("scenario", "", "Run a specific scenario ID. If empty, runs all.")
	outputPath := flag.String("output", "benchmark_results.json", "Output path for JSON results")
	verbose := flag.Bool("verbose", false, "Enable verbose output")
	flag.Parse()

	if err := godotenv.Load(); err != nil && *verbose {
		log.Printf("No .env file found (continuing anyway): %v", err)
	}

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		log.Fatal("OPENAI_API_KEY is required to run benchmarks")
	}

	runner, err := scenarios.NewRunner(apiKey, *verbose)
	if err != nil {
		log.Fatalf("failed to create runner: %v", err)
	}

	ctx := context.Background()
	var results []scenarios.Result
	passed := 0

	for _, scenario := range scenarios.All() {
		if *scenarioID != "" && scenario.ID != *scenarioID {
			continue
		}

		fmt.Printf("Running %s (%s)...\n", scenario.ID, scenario.Name)
		result := runner.Run(ctx, scenario)
		results = append(results, result)

		if result.Passed {
			passed++
			fmt.Printf("  PASS (%s)\n", result.Duration.Round(time.Millisecond))
		} else {
			fmt.Printf("  FAIL (%s)\n", result.Duration.Round(time.Millisecond))
			for _, failure := range result.Failures {
				fmt.Printf("    - %s\n", failure)
			}
		}
	}

	if len(results) == 0 {
		log.Fatalf("no scenario matched %q", *scenarioID)
	}

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		log.Fatalf("failed to encode results: %v", err)
	}
	if err := os.WriteFile(*outputPath, data, 0644); err != nil {
		log.Fatalf("failed to write results: %v", err)
	}

	fmt.Printf("\n%d/%d scenarios passed. Results written to %s\n", passed, len(results), *outputPath)
	if passed != len(results) {
		os.Exit(1)
	}
}
