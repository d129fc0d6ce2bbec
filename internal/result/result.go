package result

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"
	"github.com/ppiankov/callgen/internal/baseline"
	"github.com/ppiankov/callgen/internal/eval"
	"github.com/ppiankov/callgen/internal/generator"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255"))
	nameStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))  // Blue
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))            // Gray
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))             // Green
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true) // Red
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))            // Orange
)

// ---------- Shared JSON helpers ----------

func PrettyJSON(v any) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ---------- Call extraction ----------

// Call is a best-effort view of one proposed call. Raw keeps the original
// entry when it does not look like a call.
type Call struct {
	Name      string
	Arguments any
	Raw       any
}

// listKeys are the wrapper keys models commonly use around a call list.
var listKeys = []string{"calls", "function_calls", "tool_calls", "actions"}

// ExtractCalls flattens the usual shapes of actual_calls into a list:
// a bare array, or an object wrapping an array under a well-known key.
// Any other value is returned as a single raw entry.
func ExtractCalls(v any) []Call {
	var items []any
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		items = t
	case map[string]any:
		for _, k := range listKeys {
			if list, ok := t[k].([]any); ok {
				items = list
				break
			}
		}
		if items == nil {
			items = []any{t}
		}
	default:
		return []Call{{Raw: v}}
	}

	calls := make([]Call, 0, len(items))
	for _, item := range items {
		calls = append(calls, toCall(item))
	}
	return calls
}

func toCall(item any) Call {
	m, ok := item.(map[string]any)
	if !ok {
		return Call{Raw: item}
	}
	// OpenAI tool-call shape: {"function": {"name": ..., "arguments": ...}}
	if fn, ok := m["function"].(map[string]any); ok {
		m = fn
	}
	name := firstString(m, "name", "operationId", "operation", "function")
	if name == "" {
		return Call{Raw: item}
	}
	var args any
	for _, k := range []string{"arguments", "parameters", "args", "params", "body"} {
		if a, ok := m[k]; ok {
			args = a
			break
		}
	}
	return Call{Name: name, Arguments: args, Raw: item}
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// ---------- Human renderers ----------

// RenderCallsHuman prints the calls proposed for intent.
func RenderCallsHuman(w io.Writer, intent string, r *generator.Result) {
	fmt.Fprintln(w, headerStyle.Render("===== PROPOSED CALLS ====="))
	if intent != "" {
		fmt.Fprintf(w, "%s %s\n", dimStyle.Render("Intent:"), intent)
	}

	calls := ExtractCalls(r.ActualCalls)
	if len(calls) == 0 {
		fmt.Fprintln(w, "No calls proposed.")
		return
	}

	for i, c := range calls {
		fmt.Fprintln(w, "────────────────────────────────────────")
		if c.Name == "" {
			raw, _ := PrettyJSON(c.Raw)
			fmt.Fprintf(w, "%d. %s\n%s\n", i+1, dimStyle.Render("(unrecognized entry)"), indent(raw))
			continue
		}
		fmt.Fprintf(w, "%d. %s\n", i+1, nameStyle.Render(c.Name))
		if c.Arguments != nil {
			args, _ := PrettyJSON(c.Arguments)
			fmt.Fprintf(w, "%s\n", indent(args))
		}
	}
	fmt.Fprintln(w, "────────────────────────────────────────")
}

// RenderReportHuman prints an evaluation report as a table followed by the
// diff of every failing case.
func RenderReportHuman(w io.Writer, r *eval.Report) {
	fmt.Fprintf(w, "\n=== Eval Run %s ===\n", r.RunID)

	table := tablewriter.NewWriter(w)
	table.Header([]string{"Case", "Outcome", "Duration", "Detail"})
	for _, cr := range r.Results {
		table.Append([]string{
			cr.Name,
			outcomeLabel(cr.Outcome),
			fmt.Sprintf("%dms", cr.DurationMS),
			detail(cr),
		})
	}
	table.Render()

	s := r.Summary
	fmt.Fprintf(w, "\nTotal: %d | Passed: %d | Failed: %d | Errored: %d\n", s.Total, s.Passed, s.Failed, s.Errored)

	failing := make([]eval.CaseResult, 0)
	for _, cr := range r.Results {
		if cr.Outcome == eval.OutcomeFail && cr.Diff != "" {
			failing = append(failing, cr)
		}
	}
	sort.SliceStable(failing, func(i, j int) bool { return failing[i].Name < failing[j].Name })
	for _, cr := range failing {
		fmt.Fprintf(w, "\n%s %s\n%s", failStyle.Render("✗"), cr.Name, cr.Diff)
	}
}

// RenderDriftHuman prints how the current run moved against a baseline.
// Unchanged cases are only counted.
func RenderDriftHuman(w io.Writer, d *baseline.DriftReport) {
	fmt.Fprintf(w, "\n%s (baseline from %s)\n", headerStyle.Render("=== Drift ==="),
		d.BaselineTime.UTC().Format("2006-01-02 15:04:05 UTC"))

	groups := []struct {
		label string
		style lipgloss.Style
		cases []baseline.CaseDrift
	}{
		{"Regressed", failStyle, d.Regressed},
		{"Fixed", passStyle, d.Fixed},
		{"Changed calls", warnStyle, d.Changed},
		{"New", dimStyle, d.New},
		{"Removed", dimStyle, d.Removed},
	}
	for _, g := range groups {
		if len(g.cases) == 0 {
			continue
		}
		fmt.Fprintf(w, "%s:\n", g.style.Render(g.label))
		for _, c := range g.cases {
			switch {
			case c.BaselineOutcome != "" && c.CurrentOutcome != "":
				fmt.Fprintf(w, "  %s: %s -> %s\n", c.Case, c.BaselineOutcome, c.CurrentOutcome)
			case c.CurrentOutcome != "":
				fmt.Fprintf(w, "  %s: %s\n", c.Case, c.CurrentOutcome)
			default:
				fmt.Fprintf(w, "  %s (was %s)\n", c.Case, c.BaselineOutcome)
			}
		}
	}

	s := d.Summary
	fmt.Fprintf(w, "Regressed: %d | Fixed: %d | Changed: %d | Unchanged: %d | New: %d | Removed: %d\n",
		s.Regressed, s.Fixed, s.Changed, s.Unchanged, s.New, s.Removed)
}

func outcomeLabel(o eval.Outcome) string {
	switch o {
	case eval.OutcomePass:
		return passStyle.Render("✓ PASS")
	case eval.OutcomeFail:
		return failStyle.Render("✗ FAIL")
	case eval.OutcomeError:
		return warnStyle.Render("⚠ ERROR")
	default:
		return string(o)
	}
}

func detail(cr eval.CaseResult) string {
	switch cr.Outcome {
	case eval.OutcomeError:
		return truncate(cr.ErrorKind+": "+cr.Error, 80)
	case eval.OutcomeFail:
		return "calls differ (see diff)"
	default:
		return fmt.Sprintf("%d call(s)", len(ExtractCalls(cr.Actual)))
	}
}

func indent(s string) string {
	return "   " + strings.ReplaceAll(s, "\n", "\n   ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
