package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/senthilkumarv/aq-telemetry/internal/database"
	"github.com/senthilkumarv/aq-telemetry/internal/models"
	"github.com/senthilkumarv/aq-telemetry/internal/telemetry"
)

const importQuality = 3

// ImportMode is override (upsert) or replace (delete the probe's readings first)
type ImportMode string

const (
	ImportModeOverride ImportMode = "override"
	ImportModeReplace  ImportMode = "replace"
)

// ParseImportMode validates a mode form value
func ParseImportMode(s string) (ImportMode, error) {
	switch ImportMode(strings.ToLower(strings.TrimSpace(s))) {
	case ImportModeOverride:
		return ImportModeOverride, nil
	case ImportModeReplace:
		return ImportModeReplace, nil
	case "":
		return "", fmt.Errorf("missing mode (required: override or replace)")
	}
	return "", fmt.Errorf("invalid mode %q (must be override or replace)", s)
}

// ImportResult holds the outcome of a CSV import
type ImportResult struct {
	Count          int
	ProbesAffected int
}

// UploadService imports probe readings exported as CSV
type UploadService struct {
	db     *database.DB
	logger *slog.Logger
}

// NewUploadService creates a new UploadService
func NewUploadService(db *database.DB, logger *slog.Logger) *UploadService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadService{db: db, logger: logger.With(slog.String("component", "upload"))}
}

// csvProbe is one value column of an import file
type csvProbe struct {
	probeType string
	name      string
}

// parseProbeColumn accepts "Name" or "ProbeType/Name"
func parseProbeColumn(header string) (csvProbe, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return csvProbe{}, fmt.Errorf("empty probe name")
	}
	if typ, name, ok := strings.Cut(header, "/"); ok {
		typ, name = strings.TrimSpace(typ), strings.TrimSpace(name)
		if typ == "" || name == "" {
			return csvProbe{}, fmt.Errorf("invalid probe column %q", header)
		}
		return csvProbe{probeType: typ, name: name}, nil
	}
	return csvProbe{probeType: header, name: header}, nil
}

// ImportCSV imports readings for host. The header is "timestamp" followed by
// one column per probe; empty cells are skipped. In replace mode the existing
// readings of every probe in the header are removed first.
func (u *UploadService) ImportCSV(ctx context.Context, host string, reader io.Reader, mode ImportMode) (*ImportResult, error) {
	if strings.TrimSpace(host) == "" {
		return nil, fmt.Errorf("missing host")
	}

	r := csv.NewReader(reader)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("CSV is empty")
	}

	header := records[0]
	if len(header) < 2 {
		return nil, fmt.Errorf("CSV must have timestamp column and at least one probe column")
	}
	if strings.ToLower(strings.TrimSpace(header[0])) != "timestamp" {
		return nil, fmt.Errorf("first column must be 'timestamp', got %q", header[0])
	}
	probes := make([]csvProbe, 0, len(header)-1)
	for i := 1; i < len(header); i++ {
		p, err := parseProbeColumn(header[i])
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", i+1, err)
		}
		probes = append(probes, p)
	}

	var readings []models.Reading
	for rowIdx, row := range records[1:] {
		line := rowIdx + 2
		if allEmpty(row) {
			continue
		}
		if len(row) != len(header) {
			return nil, fmt.Errorf("row %d: expected %d columns, got %d", line, len(header), len(row))
		}
		ts, err := telemetry.ParseTimestamp(row[0])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		for i, p := range probes {
			cell := strings.TrimSpace(row[i+1])
			if cell == "" {
				continue
			}
			value, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d column %s: invalid number %q", line, p.name, cell)
			}
			readings = append(readings, models.Reading{
				Host:      host,
				ProbeType: p.probeType,
				Name:      p.name,
				Timestamp: ts,
				Value:     value,
				Quality:   importQuality,
			})
		}
	}

	var replace []string
	if mode == ImportModeReplace {
		for _, p := range probes {
			replace = append(replace, p.name)
		}
	}
	count, err := u.db.ReplaceProbeReadings(ctx, host, replace, readings)
	if err != nil {
		return nil, err
	}

	u.logger.Info("csv_imported",
		slog.String("host", host),
		slog.String("mode", string(mode)),
		slog.Int("records", count),
		slog.Int("probes", len(probes)))
	return &ImportResult{Count: count, ProbesAffected: len(probes)}, nil
}

func allEmpty(ss []string) bool {
	for _, s := range ss {
		if strings.TrimSpace(s) != "" {
			return false
		}
	}
	return true
}
