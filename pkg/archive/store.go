package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// ErrRunNotFound is returned by GetArchiveDetails when runID has no
// corresponding run directory.
var ErrRunNotFound = errors.New("archive: run not found")

// Store manages benchmark run archives under a file-based, directory-per-run
// layout. All writes are idempotent: repeated writes with the same key
// overwrite the same file. Nothing here uses transactional storage — each
// file is independently durable once written.
type Store struct {
	basePath string
}

// New creates a Store rooted at basePath, creating the directory if needed.
func New(basePath string) (*Store, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("archive: create base path: %w", err)
	}
	return &Store{basePath: basePath}, nil
}

func (s *Store) runDir(runID string) string {
	return filepath.Join(s.basePath, runID)
}

func (s *Store) createRunDir(runID string) (string, error) {
	dir := s.runDir(runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("archive: create run directory: %w", err)
	}
	return dir, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("archive: marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("archive: write %s: %w", path, err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// SaveConfig persists a run's configuration to <run_id>/config.json.
func (s *Store) SaveConfig(runID string, config any) error {
	dir, err := s.createRunDir(runID)
	if err != nil {
		return err
	}
	return writeJSON(filepath.Join(dir, "config.json"), config)
}

// SaveSummary persists the overall run summary to <run_id>/summary.json.
func (s *Store) SaveSummary(runID string, summary RunSummary) error {
	dir, err := s.createRunDir(runID)
	if err != nil {
		return err
	}
	return writeJSON(filepath.Join(dir, "summary.json"), summary)
}

// SaveModelStep persists one step record under
// <run_id>/pair_<pairIdx>/model_<sanitized>/steps/step_<NNN>.json.
func (s *Store) SaveModelStep(runID string, pairIdx int, modelName string, step StepRecord) error {
	modelDir, err := s.modelDir(runID, pairIdx, modelName)
	if err != nil {
		return err
	}
	stepsDir := filepath.Join(modelDir, "steps")
	if err := os.MkdirAll(stepsDir, 0o755); err != nil {
		return fmt.Errorf("archive: create steps directory: %w", err)
	}
	fileName := fmt.Sprintf("step_%03d.json", step.StepIndex)
	return writeJSON(filepath.Join(stepsDir, fileName), step)
}

// SaveModelMetrics persists a model's metrics to metrics.json and its path
// to a sibling path.json, both under
// <run_id>/pair_<pairIdx>/model_<sanitized>/.
func (s *Store) SaveModelMetrics(runID string, pairIdx int, modelName string, metrics ModelMetrics) error {
	modelDir, err := s.modelDir(runID, pairIdx, modelName)
	if err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(modelDir, "metrics.json"), metrics); err != nil {
		return err
	}
	return writeJSON(filepath.Join(modelDir, "path.json"), map[string]any{"path": metrics.Path})
}

func (s *Store) modelDir(runID string, pairIdx int, modelName string) (string, error) {
	runDir, err := s.createRunDir(runID)
	if err != nil {
		return "", err
	}
	pairDir := filepath.Join(runDir, fmt.Sprintf("pair_%d", pairIdx))
	modelDir := filepath.Join(pairDir, "model_"+SanitizeModelName(modelName))
	if err := os.MkdirAll(modelDir, 0o755); err != nil {
		return "", fmt.Errorf("archive: create model directory: %w", err)
	}
	return modelDir, nil
}

// SanitizeModelName replaces filesystem-hostile characters in a model
// identifier so it can be used as a directory name component.
func SanitizeModelName(name string) string {
	replacer := strings.NewReplacer("/", "_", ":", "_", "\\", "_")
	return replacer.Replace(name)
}

// ListArchives returns every top-level run directory containing a
// config.json, sorted by that file's modification time descending.
func (s *Store) ListArchives() ([]ArchiveSummary, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("archive: list archives: %w", err)
	}

	var summaries []ArchiveSummary
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		configPath := filepath.Join(s.basePath, entry.Name(), "config.json")
		info, err := os.Stat(configPath)
		if err != nil {
			continue
		}
		var config map[string]any
		if err := readJSON(configPath, &config); err != nil {
			continue
		}
		summaries = append(summaries, ArchiveSummary{
			RunID:     entry.Name(),
			Config:    config,
			Timestamp: info.ModTime().UTC().Format("2006-01-02T15:04:05.000000000Z"),
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Timestamp > summaries[j].Timestamp
	})
	return summaries, nil
}

// GetArchiveDetails loads the config, summary, and per-pair per-model
// metrics/steps for a run. It also supports the legacy flat layout
// (model_<sanitized> directories directly under the run directory, with no
// pair_<k> grouping) for backward compatibility.
func (s *Store) GetArchiveDetails(runID string) (*ArchiveDetails, error) {
	runDir := s.runDir(runID)
	info, err := os.Stat(runDir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %q", ErrRunNotFound, runID)
	}

	details := &ArchiveDetails{}

	if err := readJSON(filepath.Join(runDir, "config.json"), &details.Config); err == nil {
		// loaded
	}
	if err := readJSON(filepath.Join(runDir, "summary.json"), &details.Summary); err == nil {
		// loaded
	}

	entries, err := os.ReadDir(runDir)
	if err != nil {
		return nil, fmt.Errorf("archive: read run directory: %w", err)
	}

	pairDirs := make([]string, 0)
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), "pair_") {
			pairDirs = append(pairDirs, e.Name())
		}
	}
	sort.Strings(pairDirs)

	if len(pairDirs) > 0 {
		details.Pairs = make(map[int]PairDetails)
		for _, pd := range pairDirs {
			idx, _ := strconv.Atoi(strings.TrimPrefix(pd, "pair_"))
			models, err := s.loadModelsUnder(filepath.Join(runDir, pd))
			if err != nil {
				continue
			}
			details.Pairs[idx] = PairDetails{Models: models}
		}
		if p0, ok := details.Pairs[0]; ok {
			details.Models = p0.Models
		}
		return details, nil
	}

	// Legacy layout: model_<sanitized> directories directly under runDir.
	models, err := s.loadModelsUnder(runDir)
	if err == nil && len(models) > 0 {
		details.Models = models
		details.Pairs = map[int]PairDetails{0: {Models: models}}
		return details, nil
	}

	// Older legacy layout: metrics_finales.json + flat steps/ directory.
	var metrics map[string]any
	if err := readJSON(filepath.Join(runDir, "metrics_finales.json"), &metrics); err == nil {
		details.Metrics = metrics
	}
	stepsDir := filepath.Join(runDir, "steps")
	if stepEntries, err := os.ReadDir(stepsDir); err == nil {
		sortedNames := make([]string, 0, len(stepEntries))
		for _, se := range stepEntries {
			if strings.HasSuffix(se.Name(), ".json") {
				sortedNames = append(sortedNames, se.Name())
			}
		}
		sort.Strings(sortedNames)
		for _, name := range sortedNames {
			var step map[string]any
			if err := readJSON(filepath.Join(stepsDir, name), &step); err == nil {
				details.Steps = append(details.Steps, step)
			}
		}
	}

	return details, nil
}

func (s *Store) loadModelsUnder(dir string) (map[string]ModelDetails, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	models := make(map[string]ModelDetails)
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), "model_") {
			continue
		}
		modelName := strings.Replace(strings.TrimPrefix(e.Name(), "model_"), "_", "/", 1)
		modelDir := filepath.Join(dir, e.Name())

		var md ModelDetails
		var metrics map[string]any
		if err := readJSON(filepath.Join(modelDir, "metrics.json"), &metrics); err == nil {
			md.Metrics = metrics
		}

		stepsDir := filepath.Join(modelDir, "steps")
		if stepEntries, err := os.ReadDir(stepsDir); err == nil {
			names := make([]string, 0, len(stepEntries))
			for _, se := range stepEntries {
				if strings.HasSuffix(se.Name(), ".json") {
					names = append(names, se.Name())
				}
			}
			sort.Strings(names)
			for _, name := range names {
				var step map[string]any
				if err := readJSON(filepath.Join(stepsDir, name), &step); err == nil {
					md.Steps = append(md.Steps, step)
				}
			}
		}

		models[modelName] = md
	}
	return models, nil
}
