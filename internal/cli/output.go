// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-sclogin.
//
// go-sclogin is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jeremyhahn/go-sclogin/pkg/hostcheck"
	"github.com/jeremyhahn/go-sclogin/pkg/report"
	"github.com/jeremyhahn/go-sclogin/pkg/scenario"
)

// OutputFormat defines the output format type
type OutputFormat string

const (
	OutputFormatText  OutputFormat = "text"
	OutputFormatJSON  OutputFormat = "json"
	OutputFormatTable OutputFormat = "table"
)

// Printer handles formatted output
type Printer struct {
	format OutputFormat
	writer io.Writer
}

// NewPrinter creates a new Printer
func NewPrinter(format string, writer io.Writer) *Printer {
	return &Printer{
		format: OutputFormat(format),
		writer: writer,
	}
}

// PrintSummary prints the outcome of a run
func (p *Printer) PrintSummary(sum *report.Summary) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(sum)
	case OutputFormatTable:
		fmt.Fprintf(p.writer, "%-28s %-12s %-8s %-10s %-12s\n",
			"SCENARIO", "FIXTURE", "OUTCOME", "CLASS", "DURATION")
		fmt.Fprintln(p.writer, strings.Repeat("-", 74))
		for _, r := range sum.Results {
			fmt.Fprintf(p.writer, "%-28s %-12s %-8s %-10s %-12s\n",
				r.Scenario, r.Fixture, r.Outcome, r.Class, r.Duration.Round(1e6))
		}
		fmt.Fprintln(p.writer, strings.Repeat("-", 74))
		fmt.Fprintf(p.writer, "%d passed, %d failed (%d total)\n",
			sum.Passed(), sum.Failed(), len(sum.Results))
		return nil
	case OutputFormatText:
		for _, r := range sum.Results {
			if r.Outcome == report.OutcomePass {
				fmt.Fprintf(p.writer, "PASS  %s / %s (%s)\n",
					r.Scenario, r.Fixture, r.Duration.Round(1e6))
				continue
			}
			fmt.Fprintf(p.writer, "FAIL  %s / %s [%s]: %s\n",
				r.Scenario, r.Fixture, r.Class, r.Error)
		}
		fmt.Fprintf(p.writer, "%d passed, %d failed (%d total)\n",
			sum.Passed(), sum.Failed(), len(sum.Results))
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintScenarios prints the registered scenarios and configured fixtures
func (p *Printer) PrintScenarios(scenarios []*scenario.Scenario, fixtures []string) error {
	switch p.format {
	case OutputFormatJSON:
		list := make([]map[string]interface{}, len(scenarios))
		for i, sc := range scenarios {
			list[i] = map[string]interface{}{
				"name":      sc.Name,
				"desc":      sc.Desc,
				"with_card": sc.WithCard,
			}
		}
		return p.printJSON(map[string]interface{}{
			"scenarios": list,
			"fixtures":  fixtures,
		})
	case OutputFormatTable:
		fmt.Fprintf(p.writer, "%-28s %-6s %s\n", "SCENARIO", "CARD", "DESCRIPTION")
		fmt.Fprintln(p.writer, strings.Repeat("-", 72))
		for _, sc := range scenarios {
			fmt.Fprintf(p.writer, "%-28s %-6t %s\n", sc.Name, sc.WithCard, sc.Desc)
		}
		if len(fixtures) > 0 {
			fmt.Fprintln(p.writer)
			fmt.Fprintln(p.writer, "Fixtures:")
			for _, f := range fixtures {
				fmt.Fprintf(p.writer, "  - %s\n", f)
			}
		}
		return nil
	case OutputFormatText:
		fmt.Fprintln(p.writer, "Scenarios:")
		for _, sc := range scenarios {
			fmt.Fprintf(p.writer, "  - %s: %s\n", sc.Name, sc.Desc)
		}
		fmt.Fprintln(p.writer, "Fixtures:")
		for _, f := range fixtures {
			fmt.Fprintf(p.writer, "  - %s\n", f)
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintChecks prints host readiness check results
func (p *Printer) PrintChecks(checks []hostcheck.CheckResult) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"checks": checks,
		})
	case OutputFormatTable:
		fmt.Fprintf(p.writer, "%-24s %-6s %s\n", "CHECK", "STATUS", "MESSAGE")
		fmt.Fprintln(p.writer, strings.Repeat("-", 72))
		for _, c := range checks {
			fmt.Fprintf(p.writer, "%-24s %-6s %s\n", c.Name, c.Status, c.Message)
		}
		return nil
	case OutputFormatText:
		for _, c := range checks {
			fmt.Fprintf(p.writer, "%-4s  %s", strings.ToUpper(string(c.Status)), c.Name)
			if c.Message != "" {
				fmt.Fprintf(p.writer, ": %s", c.Message)
			}
			fmt.Fprintln(p.writer)
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintHistory prints stored run results
func (p *Printer) PrintHistory(results []*report.Result) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"results": results,
		})
	case OutputFormatTable:
		if len(results) == 0 {
			fmt.Fprintln(p.writer, "No runs recorded")
			return nil
		}
		fmt.Fprintf(p.writer, "%-36s %-28s %-12s %-8s %-20s\n",
			"ID", "SCENARIO", "FIXTURE", "OUTCOME", "STARTED")
		fmt.Fprintln(p.writer, strings.Repeat("-", 108))
		for _, r := range results {
			fmt.Fprintf(p.writer, "%-36s %-28s %-12s %-8s %-20s\n",
				r.ID, r.Scenario, r.Fixture, r.Outcome,
				r.Started.Format("2006-01-02 15:04:05"))
		}
		return nil
	case OutputFormatText:
		if len(results) == 0 {
			fmt.Fprintln(p.writer, "No runs recorded")
			return nil
		}
		for _, r := range results {
			fmt.Fprintf(p.writer, "  - %s %s/%s %s (%s)\n",
				r.Started.Format("2006-01-02 15:04:05"),
				r.Scenario, r.Fixture, r.Outcome, r.ID)
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintVersion prints version information
func (p *Printer) PrintVersion(version, commit, date string) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"version": version,
			"commit":  commit,
			"date":    date,
		})
	case OutputFormatTable, OutputFormatText:
		fmt.Fprintf(p.writer, "sclogin %s (commit %s, built %s)\n", version, commit, date)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintError prints an error message
func (p *Printer) PrintError(err error) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		})
	case OutputFormatTable, OutputFormatText:
		fmt.Fprintf(p.writer, "Error: %v\n", err)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// printJSON prints data as JSON
func (p *Printer) printJSON(data interface{}) error {
	encoder := json.NewEncoder(p.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
