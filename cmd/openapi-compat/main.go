// Package main checks the generated swagger document against the routes the
// frontend needs and, optionally, against a previous revision.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"vistagram/internal/apicontract"
)

func main() {
	revisionPath := flag.String("revision", "docs/swagger.json", "swagger document to check")
	basePath := flag.String("base", "", "previous swagger document; enables the backward compatibility check")
	flag.Parse()

	revision, err := apicontract.Load(*revisionPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load revision spec: %v\n", err)
		os.Exit(1)
	}

	issues := apicontract.CheckRequired(revision, apicontract.Required)

	if strings.TrimSpace(*basePath) != "" {
		base, err := apicontract.Load(*basePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load base spec: %v\n", err)
			os.Exit(1)
		}
		issues = append(issues, apicontract.Compare(base, revision)...)
	}

	if len(issues) > 0 {
		fmt.Fprintln(os.Stderr, "api contract check failed:")
		for _, issue := range issues {
			fmt.Fprintf(os.Stderr, "- %s\n", issue)
		}
		os.Exit(1)
	}

	fmt.Println("api contract check passed")
}
