package state

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
)

// Store owns the flat JSON file recording which items have been handled per
// feed and the last calendar date a digest went out. It is loaded once per
// invocation, mutated in memory, and persisted at most once near the end of a
// successful run. Nothing else reads or writes the backing file.
type Store struct {
	path string
	data fileData
}

type fileData struct {
	ProcessedIDs map[string][]string `json:"processed_ids"`
	LastSentDate string              `json:"last_sent_date,omitempty"`
}

// Load reads the state file at path. A missing or malformed file yields an
// empty store, never an error: losing old state degrades to reprocessing,
// which is preferable to refusing to run.
func Load(path string) *Store {
	s := &Store{
		path: path,
		data: fileData{ProcessedIDs: make(map[string][]string)},
	}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		slog.Info("State file not found, starting fresh", "path", path)
		return s
	}
	if err != nil {
		slog.Warn("Failed to read state file, starting fresh", "path", path, "error", err)
		return s
	}

	var data fileData
	if err := json.Unmarshal(raw, &data); err != nil {
		slog.Warn("State file is malformed, starting fresh", "path", path, "error", err)
		return s
	}
	if data.ProcessedIDs == nil {
		data.ProcessedIDs = make(map[string][]string)
	}

	s.data = data
	slog.Info("State loaded",
		"path", path,
		"feeds_tracked", len(data.ProcessedIDs),
		"last_sent", data.LastSentDate)
	return s
}

// IsHandled reports whether itemID has already been processed for sourceURL.
func (s *Store) IsHandled(sourceURL, itemID string) bool {
	return slices.Contains(s.data.ProcessedIDs[sourceURL], itemID)
}

// MarkHandled records itemID as processed for sourceURL. Marking an
// already-present ID is a no-op, so the per-source list stays duplicate-free
// with insertion order preserved.
func (s *Store) MarkHandled(sourceURL, itemID string) {
	if s.IsHandled(sourceURL, itemID) {
		return
	}
	s.data.ProcessedIDs[sourceURL] = append(s.data.ProcessedIDs[sourceURL], itemID)
}

// HandledCount returns the number of processed IDs tracked for sourceURL.
func (s *Store) HandledCount(sourceURL string) int {
	return len(s.data.ProcessedIDs[sourceURL])
}

// AlreadySentOn reports whether a digest was already sent on the given
// calendar date (YYYY-MM-DD).
func (s *Store) AlreadySentOn(date string) bool {
	return s.data.LastSentDate == date
}

// MarkSentDate records the calendar date of the delivered digest.
func (s *Store) MarkSentDate(date string) {
	s.data.LastSentDate = date
}

// EvictOldest trims the processed-ID list for sourceURL down to maxKeys,
// dropping the oldest entries. Keys appended during the current run sit at
// the tail of the list, so they survive any trim with a sane maxKeys.
func (s *Store) EvictOldest(sourceURL string, maxKeys int) {
	ids := s.data.ProcessedIDs[sourceURL]
	if maxKeys <= 0 || len(ids) <= maxKeys {
		return
	}
	slog.Info("Trimming processed IDs", "feed", sourceURL, "from", len(ids), "to", maxKeys)
	s.data.ProcessedIDs[sourceURL] = ids[len(ids)-maxKeys:]
}

// Persist atomically rewrites the state file: the full record is written to a
// temp file in the same directory and then renamed over the old one, so a
// crash mid-write leaves the previous valid state intact. A persist failure
// is surfaced to the caller; silently losing the commit would re-send the
// digest on the next run.
func (s *Store) Persist() error {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp state file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace state file: %w", err)
	}

	slog.Info("State saved", "path", s.path)
	return nil
}
