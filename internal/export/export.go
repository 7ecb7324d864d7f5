// Package export writes the flat class table to disk as JSON and CSV.
// Files are written atomically so consumers polling the export
// directory never observe a partial document.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/renameio/v2"

	"github.com/emotu/nacex/internal/log"
	"github.com/emotu/nacex/internal/taxonomy"
)

// WriteJSON writes the scope rows to path as a JSON array. The write is
// atomic: a temp file is fsynced, then renamed over the target.
func WriteJSON(ctx context.Context, path string, scopes []taxonomy.ClassRecord) error {
	logger := log.FromContext(ctx)

	pending, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("export: create pending json file: %w", err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			logger.Debug().Err(err).Msg("cleanup pending json file")
		}
	}()

	enc := json.NewEncoder(pending)
	enc.SetIndent("", "  ")
	if err := enc.Encode(scopes); err != nil {
		return fmt.Errorf("export: encode json: %w", err)
	}

	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("export: replace json file: %w", err)
	}
	return nil
}

// csvHeader is the column order of the CSV export.
var csvHeader = []string{
	"class_code", "class_name",
	"group_code", "group_name",
	"division_code", "division_name",
	"section_code", "section_name",
	"included_activities", "excluded_activities",
}

// WriteCSV writes the scope rows to path as CSV, one row per class,
// activity lists flattened with "; " separators.
func WriteCSV(ctx context.Context, path string, scopes []taxonomy.ClassRecord) error {
	logger := log.FromContext(ctx)

	pending, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("export: create pending csv file: %w", err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			logger.Debug().Err(err).Msg("cleanup pending csv file")
		}
	}()

	w := csv.NewWriter(pending)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("export: write csv header: %w", err)
	}
	for _, sc := range scopes {
		row := []string{
			string(sc.ClassCode), sc.ClassName,
			string(sc.GroupCode), sc.GroupName,
			string(sc.DivisionCode), sc.DivisionName,
			string(sc.SectionCode), sc.SectionName,
			flattenActivities(sc.Includes),
			flattenActivities(sc.Excludes),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("export: write csv row %s: %w", sc.ClassCode, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("export: flush csv: %w", err)
	}

	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("export: replace csv file: %w", err)
	}
	return nil
}

func flattenActivities(activities []taxonomy.Activity) string {
	parts := make([]string, 0, len(activities))
	for _, a := range activities {
		text := a.Text
		if len(a.Details) > 0 {
			text += " (" + strings.Join(a.Details, ", ") + ")"
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "; ")
}
