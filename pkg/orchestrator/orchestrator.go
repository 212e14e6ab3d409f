package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/codeready-toolchain/benchwiki/pkg/archive"
	"github.com/codeready-toolchain/benchwiki/pkg/events"
	"github.com/codeready-toolchain/benchwiki/pkg/wikisource"
)

const historyWindowSize = 5

// Orchestrator drives benchmark runs across one or more models, one model
// at a time, recording every step to Archive and publishing progress to
// Publisher as it goes.
type Orchestrator struct {
	wiki                  WikiSource
	llm                   LLM
	archive               Archive
	bus                   Publisher
	initialRetryDelay     time.Duration
	modelSettleBefore     time.Duration
	modelSettleAfterStart time.Duration
}

// New creates an Orchestrator. modelSettleBefore is the pause taken before
// the first model in a run (default 300ms per the per-model settle
// handshake); modelSettleAfterStart is the pause taken after publishing
// each model's model_start event and before its navigation loop begins
// (default 100ms).
func New(wiki WikiSource, llm LLM, store Archive, bus Publisher, initialRetryDelay, modelSettleBefore, modelSettleAfterStart time.Duration) *Orchestrator {
	return &Orchestrator{
		wiki:                  wiki,
		llm:                   llm,
		archive:               store,
		bus:                   bus,
		initialRetryDelay:     initialRetryDelay,
		modelSettleBefore:     modelSettleBefore,
		modelSettleAfterStart: modelSettleAfterStart,
	}
}

// RunBenchmark runs cfg's models sequentially against a single (start,
// target) pair, recording steps and metrics under runID. stop is checked
// between models and between steps; once tripped, the current model
// finishes its in-flight step and then the run unwinds.
func (o *Orchestrator) RunBenchmark(ctx context.Context, cfg RunConfig, runID string, stop *StopFlag) (archive.RunSummary, []ModelResult, error) {
	if err := o.archive.SaveConfig(runID, cfg); err != nil {
		return archive.RunSummary{}, nil, fmt.Errorf("orchestrator: save config: %w", err)
	}

	o.bus.Publish(runID, events.RunStartPayload{
		Type:       events.EventRunStart,
		RunID:      runID,
		StartPage:  cfg.StartPage,
		TargetPage: cfg.TargetPage,
		Models:     cfg.Models,
		Timestamp:  nowRFC3339(),
	})

	results := make([]ModelResult, 0, len(cfg.Models))
	succeeded, failed, stopped := 0, 0, 0
	var runErr error

	for idx, model := range cfg.Models {
		if stop.Requested() {
			stopped += len(cfg.Models) - idx
			o.bus.Publish(runID, events.RunStoppedPayload{Type: events.EventRunStopped, RunID: runID, Timestamp: nowRFC3339()})
			break
		}

		if idx == 0 {
			time.Sleep(o.modelSettleBefore)
		}

		o.bus.Publish(runID, events.ModelStartPayload{
			Type:      events.EventModelStart,
			RunID:     runID,
			PairIndex: 0,
			Model:     model,
			StartPage: cfg.StartPage,
			Timestamp: nowRFC3339(),
		})

		time.Sleep(o.modelSettleAfterStart)

		result, err := o.runSingleModel(ctx, cfg, runID, 0, model, stop)
		if err != nil {
			runErr = err
			slog.Error("model benchmark failed", "run_id", runID, "model", model, "error", err)
			break
		}
		results = append(results, result)

		switch result.Metrics.Status {
		case "success":
			succeeded++
		case "stopped":
			stopped++
		default:
			failed++
		}

		o.bus.Publish(runID, events.ModelCompletePayload{
			Type:      events.EventModelComplete,
			RunID:     runID,
			PairIndex: 0,
			Model:     model,
			Status:    result.Metrics.Status,
			Reason:    result.Metrics.Reason,
			Timestamp: nowRFC3339(),
		})
	}

	summary := archive.RunSummary{
		RunID:          runID,
		Models:         modelNames(results),
		SucceededCount: succeeded,
		FailedCount:    failed,
		StoppedCount:   stopped,
		Status:         "completed",
	}
	if runErr != nil {
		summary.Status = "failed"
		summary.FatalError = runErr.Error()
	}

	if err := o.archive.SaveSummary(runID, summary); err != nil {
		slog.Error("save run summary", "run_id", runID, "error", err)
	}

	if runErr != nil {
		o.bus.Publish(runID, events.ErrorPayload{Type: events.EventError, RunID: runID, Message: runErr.Error(), Timestamp: nowRFC3339()})
		return summary, results, runErr
	}

	o.bus.Publish(runID, events.RunCompletedPayload{
		Type:           events.EventRunCompleted,
		RunID:          runID,
		SucceededCount: succeeded,
		FailedCount:    failed,
		StoppedCount:   stopped,
		Timestamp:      nowRFC3339(),
	})
	return summary, results, nil
}

func modelNames(results []ModelResult) []string {
	names := make([]string, len(results))
	for i, r := range results {
		names[i] = r.Model
	}
	return names
}

// runSingleModel runs one model from cfg.StartPage toward cfg.TargetPage,
// saving each step as it happens and returning the finished metrics.
func (o *Orchestrator) runSingleModel(ctx context.Context, cfg RunConfig, runID string, pairIdx int, model string, stop *StopFlag) (ModelResult, error) {
	currentTitle := cfg.StartPage
	history := newPageHistory(historyWindowSize)
	excludedLinks := make(map[string][]string) // page title -> excluded concept IDs
	var steps []archive.StepRecord

	tracker := newHallucinationTracker(cfg.MaxHallucinationRetries)
	status, reason := "running", ""
	var reachedTitle string
	start := time.Now()

	for stepIdx := 0; stepIdx < cfg.MaxSteps; stepIdx++ {
		if stop.Requested() {
			status, reason = "stopped", "run stopped by user"
			o.bus.Publish(runID, events.ModelStoppedPayload{
				Type: events.EventModelStopped, RunID: runID, PairIndex: pairIdx, Model: model,
				Reason: reason, Timestamp: nowRFC3339(),
			})
			break
		}

		page, err := o.wiki.FetchPage(ctx, currentTitle)
		if err != nil {
			if errors.Is(err, wikisource.ErrPageNotFound) {
				step := archive.StepRecord{StepIndex: stepIdx, PageTitle: currentTitle, Is404: true, Timestamp: nowRFC3339(), Mapping: map[string]string{}}
				steps = append(steps, step)
				_ = o.archive.SaveModelStep(runID, pairIdx, model, step)
				o.bus.Publish(runID, events.StepPayload{
					Type: events.EventStep, RunID: runID, PairIndex: pairIdx, Model: model,
					StepIndex: stepIdx, PageTitle: currentTitle, Is404: true, Timestamp: nowRFC3339(),
				})

				if prev := history.Last(); prev != nil {
					if badConcept, ok := lastConceptLeadingTo(steps, currentTitle); ok {
						excludedLinks[prev.Title] = append(excludedLinks[prev.Title], badConcept)
					}
					currentTitle = prev.Title
					continue
				}

				status, reason = "failed", fmt.Sprintf("start page not found: %s", currentTitle)
				break
			}
			return ModelResult{}, fmt.Errorf("fetch page %q: %w", currentTitle, err)
		}
		history.Append(page)

		if strings.EqualFold(page.Title, cfg.TargetPage) {
			status, reason = "success", "target reached"
			reachedTitle = page.Title
			break
		}

		mapping := page.Mapping
		if excluded, ok := excludedLinks[page.Title]; ok {
			mapping = filterExcluded(page.Mapping, excluded)
		}

		messages := buildMessages(cfg.TargetPage, history)

		llmStart := time.Now()
		resp, err := o.llm.ChatStructured(ctx, model, messages, mapping, cfg.UseStructuredOutput, 3, o.initialRetryDelay)
		llmDuration := time.Since(llmStart).Seconds()
		if err != nil {
			return ModelResult{}, fmt.Errorf("llm call for %q: %w", model, err)
		}

		_, validConcept := mapping[resp.ConceptID]
		isHallucination := resp.ConceptID == "" || !validConcept

		step := archive.StepRecord{
			StepIndex:                stepIdx,
			PageTitle:                page.Title,
			RawResponse:              resp.RawResponse,
			Mapping:                  mapping,
			LLMDuration:              llmDuration,
			Timestamp:                nowRFC3339(),
			ParsingMethod:            string(resp.ParsingMethod),
			StructuredParsingSuccess: resp.StructuredParsingSuccess,
			Confidence:               resp.Confidence,
			Intuition:                resp.Intuition,
			NextConceptID:            resp.ConceptID,
		}

		if isHallucination {
			retryNumber := tracker.RecordHallucination()
			step.IsRetry = true
			step.IsHallucination = true
			step.RetryNumber = retryNumber

			steps = append(steps, step)
			_ = o.archive.SaveModelStep(runID, pairIdx, model, step)

			o.bus.Publish(runID, events.HallucinationPayload{
				Type: events.EventHallucination, RunID: runID, PairIndex: pairIdx, Model: model,
				StepIndex: stepIdx, ConsecutiveCount: retryNumber, Timestamp: nowRFC3339(),
			})
			o.bus.Publish(runID, events.StepPayload{
				Type: events.EventStep, RunID: runID, PairIndex: pairIdx, Model: model,
				StepIndex: stepIdx, PageTitle: page.Title, IsRetry: true, IsHallucination: true,
				ParsingMethod: step.ParsingMethod, Confidence: step.Confidence, Timestamp: nowRFC3339(),
			})

			if tracker.ExceededMax() {
				status = "failed"
				reason = fmt.Sprintf("max hallucination retries reached (%d); invalid concept id: %s", cfg.MaxHallucinationRetries, resp.ConceptID)
				break
			}
			continue
		}

		tracker.RecordValidChoice()
		currentTitle = mapping[resp.ConceptID]
		step.NextPageTitle = currentTitle

		steps = append(steps, step)
		_ = o.archive.SaveModelStep(runID, pairIdx, model, step)

		o.bus.Publish(runID, events.StepPayload{
			Type: events.EventStep, RunID: runID, PairIndex: pairIdx, Model: model,
			StepIndex: stepIdx, PageTitle: page.Title, NextPageTitle: currentTitle,
			ParsingMethod: step.ParsingMethod, Confidence: step.Confidence, Timestamp: nowRFC3339(),
		})

		if loops := history.VisitCount(currentTitle); loops >= cfg.MaxLoops {
			status = "failed"
			reason = fmt.Sprintf("loop detected: %s visited %d times", currentTitle, loops)
			break
		}
	}

	if status == "running" {
		status, reason = "failed", "max steps reached"
	}

	if status == "success" {
		final := archive.StepRecord{
			StepIndex:     len(steps),
			PageTitle:     reachedTitle,
			Timestamp:     nowRFC3339(),
			Mapping:       map[string]string{},
			IsFinalTarget: true,
			ParsingMethod: "none",
		}
		steps = append(steps, final)
		_ = o.archive.SaveModelStep(runID, pairIdx, model, final)
	}

	metrics := computeMetrics(status, reason, model, steps, time.Since(start).Seconds(), tracker.totalRetries)
	if err := o.archive.SaveModelMetrics(runID, pairIdx, model, metrics); err != nil {
		slog.Error("save model metrics", "run_id", runID, "model", model, "error", err)
	}

	o.bus.Publish(runID, events.ModelFinalPayload{
		Type: events.EventModelFinal, RunID: runID, PairIndex: pairIdx, Model: model,
		Path: metrics.Path, Timestamp: nowRFC3339(),
	})

	return ModelResult{Model: model, Metrics: metrics, Steps: steps}, nil
}

func computeMetrics(status, reason, model string, steps []archive.StepRecord, wallTime float64, totalRetries int) archive.ModelMetrics {
	// total_steps counts only successful edges actually taken: advances
	// with a recorded destination that are neither a hallucination retry,
	// a 404 backtrack, nor the synthetic final step.
	totalSteps := 0
	for _, s := range steps {
		if s.NextPageTitle != "" && !s.IsRetry && !s.Is404 && !s.IsFinalTarget {
			totalSteps++
		}
	}

	var llmTotal float64
	var hallucinations, structuredOK int
	path := make([]string, len(steps))
	for i, s := range steps {
		llmTotal += s.LLMDuration
		if s.IsHallucination {
			hallucinations++
		}
		if s.StructuredParsingSuccess {
			structuredOK++
		}
		path[i] = s.PageTitle
	}

	n := len(steps)
	meanLatency, hallucinationRate, structuredRate := 0.0, 0.0, 0.0
	if n > 0 {
		meanLatency = llmTotal / float64(n)
		hallucinationRate = float64(hallucinations) / float64(n)
		structuredRate = float64(structuredOK) / float64(n)
	}

	return archive.ModelMetrics{
		Status:                   status,
		Reason:                   reason,
		Model:                    model,
		TotalSteps:               totalSteps,
		TotalWallTime:            wallTime,
		MeanLLMLatency:           meanLatency,
		HallucinationCount:       hallucinations,
		HallucinationRate:        hallucinationRate,
		TotalRetries:             totalRetries,
		StructuredParsingSuccess: structuredOK,
		StructuredParsingRate:    structuredRate,
		Path:                     path,
	}
}

// lastConceptLeadingTo finds the concept ID of the most recent non-404
// step whose NextPageTitle matches title, used to blame the right link
// when backtracking after a 404.
func lastConceptLeadingTo(steps []archive.StepRecord, title string) (string, bool) {
	for i := len(steps) - 2; i >= 0; i-- {
		s := steps[i]
		if s.NextConceptID != "" && strings.EqualFold(s.NextPageTitle, title) {
			return s.NextConceptID, true
		}
	}
	return "", false
}

func filterExcluded(mapping map[string]string, excluded []string) map[string]string {
	excludedSet := make(map[string]bool, len(excluded))
	for _, id := range excluded {
		excludedSet[id] = true
	}
	filtered := make(map[string]string, len(mapping))
	for id, title := range mapping {
		if !excludedSet[id] {
			filtered[id] = title
		}
	}
	return filtered
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
