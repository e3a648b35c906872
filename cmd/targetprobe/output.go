package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/715d/targetprobe/pkg/fixture"
	"github.com/715d/targetprobe/pkg/platform"
)

type jOutput struct {
	*Result
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

func writeResults(w io.Writer, result *Result, cfg *Config) error {
	var output string
	var err error

	if cfg.JSON {
		output, err = formatJSONOutput(result)
	} else {
		output = formatTextOutput(result)
	}

	if err != nil {
		return err
	}

	_, err = fmt.Fprint(w, output)
	return err
}

func formatJSONOutput(result *Result) (string, error) {
	data, err := json.MarshalIndent(jOutput{
		Result:    result,
		Version:   version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling json output: %w", err)
	}
	return string(data) + "\n", nil
}

func formatTextOutput(result *Result) string {
	var output strings.Builder
	report := result.Report

	if result.Profile != "" {
		fmt.Fprintf(&output, "profile:  %s\n", result.Profile)
	}
	if result.Target != "" {
		fmt.Fprintf(&output, "target:   %s\n", result.Target)
	}
	fmt.Fprintf(&output, "identity: %s\n", report.Identity)
	fmt.Fprintf(&output, "prober:   %s\n", result.Prober)

	if !report.Supported {
		output.WriteString("headers:  not checked (conditional inclusion testing unsupported)\n")
	} else {
		output.WriteString("headers:\n")
		for _, id := range platform.Platforms {
			header, _ := platform.CharacteristicHeader(id)
			state := "missing"
			if report.Headers[id] {
				state = "found"
			}
			fmt.Fprintf(&output, "  %-8s <%s> %s\n", id, header, state)
		}
	}

	if result.Violation != "" {
		fmt.Fprintf(&output, "violation: %s\n", result.Violation)
		return output.String()
	}

	if len(report.Markers) == 0 {
		output.WriteString("markers:  none\n")
	}
	for _, m := range report.Markers {
		fmt.Fprintf(&output, "marker:   %s\n", m.Name)
	}
	if result.MarkerFile != "" {
		fmt.Fprintf(&output, "wrote:    %s\n", result.MarkerFile)
	}

	for _, inc := range result.MissingIncludes {
		fmt.Fprintf(&output, "%s:%d: missing include %s\n", inc.File, inc.Line, formatInclude(inc))
	}
	return output.String()
}

func formatInclude(inc fixture.Include) string {
	if inc.System {
		return "<" + inc.Name + ">"
	}
	return `"` + inc.Name + `"`
}
