// =============================================================================
// COVID Scenes - File Manager Utility
// =============================================================================
//
// This module provides file utilities shared by the commands, including:
//   - Output directory management
//   - Output file naming with placeholders
//   - Atomic file writes (temp file + rename)
//   - Malformed-row log generation
//   - Run summary generation
//
// =============================================================================

package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager handles file operations below one output directory.
type FileManager struct {
	// OutputDir is the directory where output files are placed.
	OutputDir string
}

// NewFileManager creates a new FileManager for outputDir.
func NewFileManager(outputDir string) *FileManager {
	return &FileManager{OutputDir: outputDir}
}

// EnsureDirectories creates the output directory if it doesn't exist.
//
// RETURNS:
//   - An error if the directory cannot be created.
func (fm *FileManager) EnsureDirectories() error {
	if err := os.MkdirAll(fm.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", fm.OutputDir, err)
	}
	return nil
}

// Path joins name onto the output directory.
func (fm *FileManager) Path(name string) string {
	return filepath.Join(fm.OutputDir, name)
}

// WriteFile writes a file in the output directory atomically: the content
// goes to a temporary file that is renamed into place once write succeeds.
//
// PARAMETERS:
//   - name: The file name, relative to the output directory.
//   - write: Produces the content.
//
// RETURNS:
//   - The path of the written file.
//   - An error if writing or renaming fails. No partial file is left behind.
func (fm *FileManager) WriteFile(name string, write func(w io.Writer) error) (string, error) {
	target := fm.Path(name)

	tmp, err := os.CreateTemp(fm.OutputDir, "."+filepath.Base(name)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	buffered := bufio.NewWriter(tmp)
	if err := write(buffered); err != nil {
		tmp.Close()
		return "", err
	}
	if err := buffered.Flush(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to flush %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", name, err)
	}

	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("failed to move %s into place: %w", name, err)
	}

	return target, nil
}

// =============================================================================
// OUTPUT FILE NAMING
// =============================================================================

// GenerateOutputFileName generates an output file name.
//
// PARAMETERS:
//   - format: The format string for the file name.
//     Placeholders:
//     {uuid}      - A random UUID
//     {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
//     {date}      - Current date (YYYYMMDD)
//     {time}      - Current time (HHMMSS)
//     plus one placeholder per key of params, e.g. {scene}, {state}
//   - params: A map of placeholder values.
//   - ext: The extension to enforce, e.g. ".svg". Any other extension in
//     format is replaced.
//
// RETURNS:
//   - The generated file name.
//
// EXAMPLE:
//
//	format: "{index}_{scene}_{state}.svg"
//	params: {"index": "0", "scene": "heatmap", "state": "all"}
//	output: "0_heatmap_all.svg"
func GenerateOutputFileName(format string, params map[string]string, ext string) string {
	now := time.Now()

	replacements := map[string]string{
		"{uuid}":      uuid.New().String(),
		"{timestamp}": now.Format("20060102_150405"),
		"{date}":      now.Format("20060102"),
		"{time}":      now.Format("150405"),
	}
	for key, value := range params {
		replacements["{"+key+"}"] = sanitizeName(value)
	}

	result := format
	for placeholder, value := range replacements {
		result = strings.ReplaceAll(result, placeholder, value)
	}

	if ext != "" && !strings.EqualFold(filepath.Ext(result), ext) {
		result = strings.TrimSuffix(result, filepath.Ext(result)) + ext
	}

	return result
}

// sanitizeName keeps placeholder values from introducing path separators
// or spaces into a file name.
func sanitizeName(value string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', ' ':
			return '_'
		}
		return r
	}, value)
}

// =============================================================================
// ISSUE LOG GENERATION
// =============================================================================

// IssueLogEntry represents a single malformed-row log entry.
type IssueLogEntry struct {
	RowNumber  int
	FieldName  string
	FieldValue string
	Reason     string
	Action     string
}

// WriteIssueLog writes malformed-row entries to a log file in outputDir.
//
// RETURNS:
//   - The path to the log file, or "" when there were no entries.
//   - An error if writing fails.
func WriteIssueLog(entries []IssueLogEntry, source, outputDir string) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}

	logPath := filepath.Join(outputDir, fmt.Sprintf("issues_%s.txt", time.Now().Format("20060102_150405")))

	file, err := os.Create(logPath)
	if err != nil {
		return "", fmt.Errorf("failed to create issue log: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)

	fmt.Fprintf(writer, "COVID Scenes - Malformed Rows\n"+
		"Generated: %s\n"+
		"Source:    %s\n"+
		"Total:     %d\n"+
		"================================================================================\n\n",
		time.Now().Format("2006-01-02 15:04:05"), source, len(entries))

	for i, entry := range entries {
		fmt.Fprintf(writer, "Issue #%d\n"+
			"  Row Number:     %d\n"+
			"  Field:          %s\n"+
			"  Value:          %q\n"+
			"  Reason:         %s\n"+
			"  Action:         %s\n\n",
			i+1, entry.RowNumber, entry.FieldName, entry.FieldValue, entry.Reason, entry.Action)
	}

	writer.WriteString("================================================================================\n" +
		"End of Issue Log\n")

	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush issue log: %w", err)
	}

	return logPath, nil
}

// =============================================================================
// PROCESSING SUMMARY
// =============================================================================

// ProcessingSummary contains summary information about a render run.
type ProcessingSummary struct {
	StartTime    time.Time
	EndTime      time.Time
	Source       string
	TotalRows    int
	Records      int
	SkippedRows  int
	ZeroFilled   int
	States       int
	Dates        int
	RenderedFile []RenderedFileInfo
	Failures     []string
}

// RenderedFileInfo describes one written scene.
type RenderedFileInfo struct {
	Scene      int
	Kind       string
	State      string
	OutputFile string
}

// WriteSummaryLog writes a run summary to a file in outputDir.
//
// RETURNS:
//   - The path to the summary file.
//   - An error if writing fails.
func WriteSummaryLog(summary ProcessingSummary, outputDir string) (string, error) {
	summaryPath := filepath.Join(outputDir,
		fmt.Sprintf("render_summary_%s.txt", time.Now().Format("20060102_150405")))

	file, err := os.Create(summaryPath)
	if err != nil {
		return "", fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)

	fmt.Fprintf(writer, "COVID Scenes - Render Summary\n"+
		"================================================================================\n\n"+
		"Run Information:\n"+
		"  Source:         %s\n"+
		"  Start Time:     %s\n"+
		"  End Time:       %s\n"+
		"  Duration:       %s\n\n"+
		"Statistics:\n"+
		"  Rows Read:          %d\n"+
		"  Records:            %d\n"+
		"  Rows Skipped:       %d\n"+
		"  Rows Zero-Filled:   %d\n"+
		"  States:             %d\n"+
		"  Dates:              %d\n\n",
		summary.Source,
		summary.StartTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Sub(summary.StartTime).String(),
		summary.TotalRows,
		summary.Records,
		summary.SkippedRows,
		summary.ZeroFilled,
		summary.States,
		summary.Dates)

	if len(summary.RenderedFile) > 0 {
		writer.WriteString("Rendered Scenes:\n")
		writer.WriteString("--------------------------------------------------------------------------------\n")
		for _, rf := range summary.RenderedFile {
			state := rf.State
			if state == "" {
				state = "all"
			}
			fmt.Fprintf(writer, "  Scene %d (%s, %s): %s\n", rf.Scene, rf.Kind, state, rf.OutputFile)
		}
		writer.WriteString("\n")
	}

	if len(summary.Failures) > 0 {
		writer.WriteString("Failures:\n")
		writer.WriteString("--------------------------------------------------------------------------------\n")
		for _, f := range summary.Failures {
			fmt.Fprintf(writer, "  %s\n", f)
		}
		writer.WriteString("\n")
	}

	writer.WriteString("================================================================================\n" +
		"End of Summary\n")

	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush summary file: %w", err)
	}

	return summaryPath, nil
}
