// validate is a CLI tool to validate a NACE-style source document
// before it is ingested by the daemon.
//
// Usage:
//
//	validate -f nace.md
//	validate --file nace.md --strict
//
// Exit codes:
//   - 0: Document is valid
//   - 1: Document is invalid (parse or validation error)
//   - 2: Usage error (missing required flag)
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/emotu/nacex/internal/taxonomy"
	"github.com/emotu/nacex/internal/taxonomy/parse"
	"github.com/emotu/nacex/internal/taxonomy/validate"
)

var Version = "dev"

func main() {
	var file string
	var strict bool
	var noProfile bool
	var showVersion bool

	flag.StringVar(&file, "file", "", "path to source document (markdown)")
	flag.StringVar(&file, "f", "", "path to source document (shorthand)")
	flag.BoolVar(&strict, "strict", false, "treat warnings as failures")
	flag.BoolVar(&noProfile, "no-profile", false, "skip expected per-level count checks")
	flag.BoolVar(&showVersion, "version", false, "print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(Version)
		os.Exit(0)
	}

	if file == "" {
		fmt.Fprintln(os.Stderr, "Error: --file is required")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Usage:")
		fmt.Fprintln(os.Stderr, "  validate -f nace.md")
		fmt.Fprintln(os.Stderr, "  validate --file nace.md --strict")
		os.Exit(2)
	}

	records, err := parse.ParseFile(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Parse error in %s:\n", file)
		fmt.Fprintf(os.Stderr, "  %v\n", err)
		os.Exit(1)
	}

	hierarchy, err := taxonomy.NewHierarchy(records)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Structural error in %s:\n", file)
		fmt.Fprintf(os.Stderr, "  %v\n", err)
		os.Exit(1)
	}

	profile := validate.NACERev2Profile()
	if noProfile {
		profile = validate.Profile{}
	}
	report := validate.Validate(hierarchy, profile)

	for _, issue := range report.Issues {
		if issue.Code != "" {
			fmt.Fprintf(os.Stderr, "%s: %s: %s (%s)\n", issue.Severity, issue.Code, issue.Message, issue.Rule)
			continue
		}
		fmt.Fprintf(os.Stderr, "%s: %s (%s)\n", issue.Severity, issue.Message, issue.Rule)
	}

	failed := !report.OK() || (strict && report.Warnings() > 0)
	if failed {
		fmt.Fprintf(os.Stderr, "✗ %s: %s\n", file, report.Summary())
		os.Exit(1)
	}
	fmt.Printf("✓ %s: %s\n", file, report.Summary())
}
