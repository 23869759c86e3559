package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/gnomegl/teleinvite/internal/database"
)

func WriteJSON(data interface{}, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("error creating JSON file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("error encoding JSON: %w", err)
	}
	return nil
}

type CSVWriter struct {
	file   *os.File
	writer *csv.Writer
}

func NewCSVWriter(filename string) (*CSVWriter, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("error creating CSV file: %w", err)
	}

	return &CSVWriter{
		file:   file,
		writer: csv.NewWriter(file),
	}, nil
}

func (w *CSVWriter) WriteHeader(headers []string) error {
	if err := w.writer.Write(headers); err != nil {
		return fmt.Errorf("error writing CSV headers: %w", err)
	}
	return nil
}

func (w *CSVWriter) WriteRecord(record []string) error {
	if err := w.writer.Write(record); err != nil {
		return fmt.Errorf("error writing CSV record: %w", err)
	}
	return nil
}

func (w *CSVWriter) Close() error {
	w.writer.Flush()
	if err := w.writer.Error(); err != nil {
		w.file.Close()
		return fmt.Errorf("error flushing CSV: %w", err)
	}
	return w.file.Close()
}

// WriteStatsCSV writes one row per target and session.
func WriteStatsCSV(stats []database.SessionStats, filename string) error {
	writer, err := NewCSVWriter(filename)
	if err != nil {
		return err
	}

	headers := []string{"Target ID", "Session", "Invited", "First Invited At", "Last Invited At"}
	if err := writer.WriteHeader(headers); err != nil {
		writer.Close()
		return err
	}

	for _, s := range stats {
		record := []string{
			fmt.Sprintf("-100%d", s.TargetID),
			s.Session,
			strconv.Itoa(s.Invited),
			formatTime(s.FirstSeen),
			formatTime(s.LastSeen),
		}
		if err := writer.WriteRecord(record); err != nil {
			writer.Close()
			return err
		}
	}

	return writer.Close()
}

func FormatFilename(name, dataType, format string) string {
	return fmt.Sprintf("%s_%s.%s", name, dataType, format)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
