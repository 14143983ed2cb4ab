// Package ingest decodes telemetry provider files into raw interaction
// records. Shadow replay and sentinel monitor logs arrive as JSONL
// (one record per line); manual annotations arrive as YAML entry
// files. Malformed lines and entries are skipped and counted, never
// fatal, matching the aggregator's failure semantics.
package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/skillminer/skillminer/pkg/logger"
	"github.com/skillminer/skillminer/pkg/types/mining"
)

// Stats reports how a read went.
type Stats struct {
	Files   int
	Records int
	Skipped int
}

// maxLineSize bounds a single JSONL record. Sentinel snapshots can get
// large, so this is deliberately generous.
const maxLineSize = 4 * 1024 * 1024

// ReadPaths reads every telemetry file under the given paths.
// Directories are walked recursively; files are decoded by extension
// (.jsonl/.json as JSONL record streams, .yaml/.yml as manual entry
// files, everything else ignored).
func ReadPaths(ctx context.Context, paths []string) ([]mining.RawRecord, Stats, error) {
	var records []mining.RawRecord
	var stats Stats

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, stats, errors.Wrapf(err, "cannot read telemetry path %s", path)
		}

		if !info.IsDir() {
			if err := readFile(ctx, path, &records, &stats); err != nil {
				return nil, stats, err
			}
			continue
		}

		err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			return readFile(ctx, p, &records, &stats)
		})
		if err != nil {
			return nil, stats, errors.Wrapf(err, "failed to walk telemetry directory %s", path)
		}
	}

	return records, stats, nil
}

func readFile(ctx context.Context, path string, records *[]mining.RawRecord, stats *Stats) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".json":
		rs, skipped, err := ReadJSONL(ctx, path)
		if err != nil {
			return err
		}
		*records = append(*records, rs...)
		stats.Files++
		stats.Records += len(rs)
		stats.Skipped += skipped
	case ".yaml", ".yml":
		rs, skipped, err := ReadManualEntries(ctx, path)
		if err != nil {
			return err
		}
		*records = append(*records, rs...)
		stats.Files++
		stats.Records += len(rs)
		stats.Skipped += skipped
	}
	return nil
}

// ReadJSONL decodes a shadow or sentinel log file: one JSON record per
// line. Undecodable lines are skipped and counted.
func ReadJSONL(ctx context.Context, path string) ([]mining.RawRecord, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "failed to open telemetry log %s", path)
	}
	defer f.Close()

	log := logger.G(ctx).WithField("file", path)

	var records []mining.RawRecord
	skipped := 0
	lineNo := 0

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var r mining.RawRecord
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			skipped++
			log.WithError(err).WithField("line", lineNo).Debug("skipping undecodable telemetry line")
			continue
		}
		records = append(records, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, skipped, errors.Wrapf(err, "failed to scan telemetry log %s", path)
	}

	return records, skipped, nil
}

// manualFile is the YAML shape of a manual annotation file.
type manualFile struct {
	VirtualDomain string        `yaml:"virtualDomain"`
	TargetSkillID string        `yaml:"targetSkillId"`
	Entries       []manualEntry `yaml:"entries"`
}

type manualEntry struct {
	Kind           string    `yaml:"kind"`
	SelectorName   string    `yaml:"selectorName"`
	Selector       string    `yaml:"selector"`
	WorkflowName   string    `yaml:"workflowName"`
	Description    string    `yaml:"description"`
	Steps          []string  `yaml:"steps"`
	FailurePattern string    `yaml:"failurePattern"`
	Outcome        string    `yaml:"outcome"`
	URL            string    `yaml:"url"`
	SnapshotID     string    `yaml:"snapshotId"`
	Timestamp      time.Time `yaml:"timestamp"`
}

// ReadManualEntries decodes a manual annotation YAML file into raw
// records with source manual. Entry-level defaults: outcome success,
// timestamp now. Entries that still fail validation are skipped and
// counted.
func ReadManualEntries(ctx context.Context, path string) ([]mining.RawRecord, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "failed to read manual entry file %s", path)
	}

	var file manualFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, 0, errors.Wrapf(err, "failed to parse manual entry file %s", path)
	}

	log := logger.G(ctx).WithField("file", path)

	var records []mining.RawRecord
	skipped := 0
	for i, e := range file.Entries {
		r := mining.RawRecord{
			Source:         mining.SourceManual,
			VirtualDomain:  file.VirtualDomain,
			TargetSkillID:  file.TargetSkillID,
			Kind:           mining.RecordKind(e.Kind),
			SelectorName:   e.SelectorName,
			Selector:       e.Selector,
			WorkflowName:   e.WorkflowName,
			Description:    e.Description,
			Steps:          e.Steps,
			FailurePattern: e.FailurePattern,
			Outcome:        mining.Outcome(e.Outcome),
			URL:            e.URL,
			SnapshotID:     e.SnapshotID,
			Timestamp:      e.Timestamp,
		}
		if r.Outcome == "" {
			r.Outcome = mining.OutcomeSuccess
		}
		if r.Timestamp.IsZero() {
			r.Timestamp = time.Now().UTC()
		}

		if err := r.Validate(); err != nil {
			skipped++
			log.WithError(err).WithField("entry", i).Debug("skipping invalid manual entry")
			continue
		}
		records = append(records, r)
	}

	return records, skipped, nil
}
