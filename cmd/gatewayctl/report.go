package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oriys/gatewayctl/internal/function"
	"github.com/oriys/gatewayctl/internal/iamrole"
	"github.com/oriys/gatewayctl/internal/reconcile"
)

// report is printed at the end of a run.
type report struct {
	RunID     string             `json:"run_id" yaml:"run_id"`
	Stage     string             `json:"stage" yaml:"stage"`
	Region    string             `json:"region" yaml:"region"`
	Roles     []iamrole.Result   `json:"roles,omitempty" yaml:"roles,omitempty"`
	Functions []function.Result  `json:"functions,omitempty" yaml:"functions,omitempty"`
	Gateways  []reconcile.Result `json:"gateways" yaml:"gateways"`
}

// Failed counts roles, functions and gateways that did not finish.
// A role with only policy failures still counts as provisioned.
func (r *report) Failed() int {
	n := 0
	for _, role := range r.Roles {
		if role.Error != "" {
			n++
		}
	}
	for _, fn := range r.Functions {
		if fn.Error != "" {
			n++
		}
	}
	for _, gw := range r.Gateways {
		if !gw.OK() {
			n++
		}
	}
	return n
}

func (r *report) Print(w io.Writer, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(r)
	case "table", "":
		return r.printTable(w)
	}
	return fmt.Errorf("unknown output format %q", format)
}

func (r *report) printTable(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	if len(r.Roles) > 0 {
		fmt.Fprintln(tw, "ROLE\tCREATED\tATTACHED\tINLINE\tFAILED\tERROR")
		for _, role := range r.Roles {
			fmt.Fprintf(tw, "%s\t%t\t%d\t%d\t%d\t%s\n",
				role.RoleName, role.Created, len(role.Attached), len(role.Inline), len(role.Failed), truncate(role.Error, 60))
		}
		fmt.Fprintln(tw)
	}

	if len(r.Functions) > 0 {
		fmt.Fprintln(tw, "FUNCTION\tCREATED\tERROR")
		for _, fn := range r.Functions {
			fmt.Fprintf(tw, "%s\t%t\t%s\n", fn.FunctionName, fn.Created, truncate(fn.Error, 60))
		}
		fmt.Fprintln(tw)
	}

	fmt.Fprintln(tw, "GATEWAY\tPROTOCOL\tAPI ID\tSTATE\tCREATED\tREUSED\tSKIPPED\tDURATION\tERROR")
	for _, gw := range r.Gateways {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			gw.Gateway, gw.Protocol, gw.APIID, gw.State,
			gw.Created, gw.Reused, gw.Skipped, gw.Duration.Round(time.Millisecond), truncate(gw.Error, 60))
	}
	return tw.Flush()
}

// truncate shortens s to maxLen runes, marking the cut with "...".
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
