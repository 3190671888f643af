/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 * Licensed under the Apache License, Version 2.0
 */

package audit

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
)

// Format selects an export encoding.
type Format int

const (
	FormatJSON Format = iota
	FormatCSV
)

// ExportLogs queries logs matching opts and writes them to filename
// in the given format, for handing a node's audit trail to an
// operator or an external analysis pipeline.
func (m *Manager) ExportLogs(filename string, format Format, opts QueryOptions) error {
	events, err := m.QueryLogs(opts)
	if err != nil {
		return fmt.Errorf("audit: export query failed: %w", err)
	}
	switch format {
	case FormatJSON:
		return m.exportJSON(filename, events)
	case FormatCSV:
		return m.exportCSV(filename, events)
	default:
		return fmt.Errorf("audit: unsupported export format %d", format)
	}
}

func (m *Manager) exportJSON(filename string, events []Event) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(events); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	m.logger.Info("exported audit logs to JSON", "filename", filename, "count", fmt.Sprint(len(events)))
	return nil
}

func (m *Manager) exportCSV(filename string, events []Event) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"Timestamp", "EventType", "Identifier", "Term", "Detail"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, event := range events {
		row := []string{
			event.Timestamp.Format("2006-01-02 15:04:05"),
			string(event.EventType),
			event.Identifier,
			fmt.Sprint(event.Term),
			event.Detail,
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	m.logger.Info("exported audit logs to CSV", "filename", filename, "count", fmt.Sprint(len(events)))
	return nil
}
