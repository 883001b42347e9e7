package main

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/matthewcarbone/multimodal-molecules/internal/experiment"
	"github.com/matthewcarbone/multimodal-molecules/internal/jobs"
	"github.com/matthewcarbone/multimodal-molecules/internal/persistence"
	"github.com/matthewcarbone/multimodal-molecules/internal/validation"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
)

const topRecords = 5

func printRunSummary(result *experiment.Result, job jobs.Snapshot) {
	if result == nil {
		return
	}
	report := result.Report

	fmt.Printf("\n%s %s (run %s)\n", cyan("Conditions:"), report.Conditions, job.ID)
	fmt.Printf("Rows: %d | Pairs: %d/%d | Trained: %d | Skipped: %d | Models: %d | Elapsed: %s\n",
		report.DataSize, job.Done, job.Total, job.Trained, job.Skipped, result.Models.Len(), job.Elapsed.Round(time.Millisecond))

	switch job.Status {
	case jobs.JobCompleted:
		fmt.Println(green("Run completed"))
	case jobs.JobFailed:
		fmt.Printf("%s %s (%.0f%% of pairs done): %v\n", red("Run failed at"), job.Current, 100*job.Progress(), job.Err)
	}

	keys := report.Records.Keys()
	if len(keys) == 0 {
		fmt.Println(yellow("No functional group passed the occurrence window"))
		return
	}

	sort.SliceStable(keys, func(i, j int) bool {
		a, _ := report.Records.Get(keys[i])
		b, _ := report.Records.Get(keys[j])
		return a.TestBalancedAccuracy > b.TestBalancedAccuracy
	})
	if len(keys) > topRecords {
		keys = keys[:topRecords]
	}

	fmt.Println("\nBest test balanced accuracy:")
	for _, key := range keys {
		record, _ := report.Records.Get(key)
		fmt.Printf("  %-40s %s (p_total %.4f)\n", key, green(fmt.Sprintf("%.4f", record.TestBalancedAccuracy)), record.PTotal)
	}
}

func printArtifacts(artifacts *persistence.Artifacts) {
	if artifacts == nil {
		fmt.Println(yellow("No output directory configured; results were not saved"))
		return
	}
	fmt.Printf("Report saved to: %s (%s)\n", artifacts.ReportPath, humanize.Bytes(uint64(artifacts.ReportSize)))
	fmt.Printf("Models saved to: %s (%s)\n", artifacts.ModelsPath, humanize.Bytes(uint64(artifacts.ModelsSize)))
}

func printValidation(path string, summary *validation.Summary, job jobs.Snapshot) {
	var mismatch *validation.MismatchError
	err := job.Err
	switch {
	case err == nil:
		fmt.Printf("%s %s: %d models reproduce their records (max deviation %.2g, %s)\n",
			green("PASS"), path, summary.Checked, summary.MaxDeviation, job.Elapsed.Round(time.Millisecond))
	case errors.As(err, &mismatch):
		fmt.Printf("%s %s: %s stored %.6f, recomputed %.6f\n",
			red("FAIL"), path, mismatch.Key, mismatch.Stored, mismatch.Recomputed)
	default:
		fmt.Printf("%s %s: %v\n", red("ERROR"), path, err)
	}
}
