package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/driftscope/driftscope/internal/storage"
	"github.com/driftscope/driftscope/pkg/types"
)

var (
	addedColor    = color.New(color.FgGreen)
	deletedColor  = color.New(color.FgRed)
	modifiedColor = color.New(color.FgYellow)
	severityColor = map[types.Severity]*color.Color{
		types.SeverityLow:    color.New(color.FgGreen),
		types.SeverityMedium: color.New(color.FgYellow),
		types.SeverityHigh:   color.New(color.FgRed, color.Bold),
	}
)

// renderReport writes a drift report in the requested format.
func renderReport(w io.Writer, report *types.DriftReport, format string) error {
	switch format {
	case "json":
		return writeJSONIndent(w, report)
	case "yaml":
		return writeYAML(w, report)
	default:
		return renderReportTable(w, report)
	}
}

func renderReportTable(w io.Writer, report *types.DriftReport) error {
	fmt.Fprintf(w, "Drift report %s\n", report.ID)
	fmt.Fprintf(w, "Scope:     %s\n", report.Scope)
	fmt.Fprintf(w, "Baseline:  %s\n", report.BaselineSnapshotID)
	fmt.Fprintf(w, "Candidate: %s\n\n", report.CandidateSnapshotID)

	if !report.HasDrift {
		fmt.Fprintln(w, "No drift detected")
		return nil
	}

	sev := severityColor[report.Summary.Severity]
	fmt.Fprintf(w, "Severity: %s   Changes: %d (security %d, access %d, configuration %d)\n\n",
		sev.Sprint(string(report.Summary.Severity)),
		report.Summary.TotalChanges,
		report.Summary.Categories[types.BucketSecurity],
		report.Summary.Categories[types.BucketAccess],
		report.Summary.Categories[types.BucketConfiguration])

	for _, c := range report.Changes {
		switch c.ChangeType {
		case types.ChangeAdded:
			addedColor.Fprintf(w, "  + %s/%s/%s\n", c.Category, c.ResourceType, c.ResourceID)
		case types.ChangeDeleted:
			deletedColor.Fprintf(w, "  - %s/%s/%s\n", c.Category, c.ResourceType, c.ResourceID)
		case types.ChangeModified:
			modifiedColor.Fprintf(w, "  ~ %s/%s/%s %s: %v -> %v\n",
				c.Category, c.ResourceType, c.ResourceID, c.PropertyPath, c.OldValue, c.NewValue)
		}
	}
	return nil
}

// renderSnapshotList writes snapshot metadata in the requested format.
func renderSnapshotList(w io.Writer, infos []storage.SnapshotInfo, format string) error {
	switch format {
	case "json":
		return writeJSONIndent(w, infos)
	case "yaml":
		return writeYAML(w, infos)
	default:
		for _, info := range infos {
			fmt.Fprintf(w, "%s  seq=%d  %s  %d resources\n",
				info.ID, info.Sequence, info.Timestamp.Format("2006-01-02 15:04:05"), info.ResourceCount)
		}
		return nil
	}
}

// renderReportList writes report metadata in the requested format.
func renderReportList(w io.Writer, infos []storage.ReportInfo, format string) error {
	switch format {
	case "json":
		return writeJSONIndent(w, infos)
	case "yaml":
		return writeYAML(w, infos)
	default:
		for _, info := range infos {
			drift := "no drift"
			if info.HasDrift {
				drift = fmt.Sprintf("%d changes", info.ChangeCount)
			}
			fmt.Fprintf(w, "%s  %s  %s\n",
				info.ID, info.Timestamp.Format("2006-01-02 15:04:05"), drift)
		}
		return nil
	}
}

func writeJSONIndent(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(w io.Writer, v interface{}) error {
	// Round-trip through JSON so custom JSON marshalling (config trees)
	// shapes the YAML as well.
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var generic interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		return err
	}
	return yaml.NewEncoder(w).Encode(generic)
}
