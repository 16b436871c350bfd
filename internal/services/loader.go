package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/senthilkumarv/aq-telemetry/internal/database"
	"github.com/senthilkumarv/aq-telemetry/internal/models"
	"github.com/senthilkumarv/aq-telemetry/internal/telemetry"
)

// Loader handles loading probe readings from JSON files into the local store
type Loader struct {
	db     *database.DB
	logger *slog.Logger
}

// NewLoader creates a new Loader instance
func NewLoader(db *database.DB, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{db: db, logger: logger.With(slog.String("component", "loader"))}
}

// LoadFromFile loads readings from a JSON file into the database
func (l *Loader) LoadFromFile(ctx context.Context, filePath string) (int, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return 0, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return l.LoadFromReader(ctx, file)
}

// LoadFromFolder loads all JSON files from a folder into the database
func (l *Loader) LoadFromFolder(ctx context.Context, folderPath string) (int, int, error) {
	startTime := time.Now()

	// Resolve absolute path if relative
	if !filepath.IsAbs(folderPath) {
		folderPath = filepath.Join(".", folderPath)
	}

	l.logger.Info("load_started", slog.String("folder", folderPath))

	files, err := os.ReadDir(folderPath)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read folder: %w", err)
	}

	totalCount := 0
	filesCount := 0

	for _, file := range files {
		if file.IsDir() {
			continue
		}

		// Only process .json files
		if !strings.HasSuffix(strings.ToLower(file.Name()), ".json") {
			continue
		}

		fileStartTime := time.Now()
		count, err := l.LoadFromFile(ctx, filepath.Join(folderPath, file.Name()))
		if err != nil {
			return 0, 0, fmt.Errorf("failed to load file %s: %w", file.Name(), err)
		}

		l.logger.Info("load_file_completed",
			slog.String("file", file.Name()),
			slog.Int("records", count),
			slog.Duration("duration", time.Since(fileStartTime).Round(time.Millisecond)))

		totalCount += count
		filesCount++
	}

	l.logger.Info("load_completed",
		slog.Int("records", totalCount),
		slog.Int("files", filesCount),
		slog.Duration("duration", time.Since(startTime).Round(time.Millisecond)))

	return totalCount, filesCount, nil
}

// LoadFromReader loads one reading feed document into the database
func (l *Loader) LoadFromReader(ctx context.Context, reader io.Reader) (int, error) {
	var input models.ReadingsInput
	if err := json.NewDecoder(reader).Decode(&input); err != nil {
		return 0, fmt.Errorf("failed to decode JSON: %w", err)
	}
	if input.Host == "" {
		return 0, fmt.Errorf("reading feed has no host")
	}

	var readings []models.Reading
	for _, probe := range input.Probes {
		if probe.Name == "" {
			return 0, fmt.Errorf("probe without name for host %s", input.Host)
		}
		for _, dp := range probe.Points {
			timestamp, err := telemetry.ParseTimestamp(dp.Timestamp)
			if err != nil {
				return 0, fmt.Errorf("invalid timestamp %s for probe %s: %w", dp.Timestamp, probe.Name, err)
			}
			readings = append(readings, models.Reading{
				Host:      input.Host,
				ProbeType: probe.ProbeType,
				Name:      probe.Name,
				Timestamp: timestamp,
				Value:     dp.Value,
				Quality:   dp.Quality,
			})
		}
	}

	return l.db.UpsertReadings(ctx, readings)
}
