package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/codeready-toolchain/benchwiki/pkg/archive"
	"github.com/codeready-toolchain/benchwiki/pkg/llmadapter"
	"github.com/codeready-toolchain/benchwiki/pkg/wikisource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWiki struct {
	pages map[string]*wikisource.Page
}

func (f *fakeWiki) FetchPage(_ context.Context, title string) (*wikisource.Page, error) {
	if p, ok := f.pages[title]; ok {
		return p, nil
	}
	return nil, wikisource.ErrPageNotFound
}

type fakeLLM struct {
	responses []*llmadapter.AdapterResponse
	calls     int
}

func (f *fakeLLM) ChatStructured(_ context.Context, _ string, _ []llmadapter.Message, _ map[string]string, _ bool, _ int, _ time.Duration) (*llmadapter.AdapterResponse, error) {
	if f.calls >= len(f.responses) {
		return nil, errors.New("fakeLLM: no more responses queued")
	}
	r := f.responses[f.calls]
	f.calls++
	return r, nil
}

type fakeArchive struct {
	steps   []archive.StepRecord
	metrics []archive.ModelMetrics
}

func (f *fakeArchive) SaveConfig(string, any) error { return nil }
func (f *fakeArchive) SaveModelStep(_ string, _ int, _ string, step archive.StepRecord) error {
	f.steps = append(f.steps, step)
	return nil
}
func (f *fakeArchive) SaveModelMetrics(_ string, _ int, _ string, m archive.ModelMetrics) error {
	f.metrics = append(f.metrics, m)
	return nil
}
func (f *fakeArchive) SaveSummary(string, archive.RunSummary) error { return nil }

type fakePublisher struct {
	events []any
}

func (f *fakePublisher) Publish(_ string, event any) {
	f.events = append(f.events, event)
}

func confidence(v float64) *float64 { return &v }

func TestOrchestrator_SucceedsWhenTargetReached(t *testing.T) {
	wiki := &fakeWiki{pages: map[string]*wikisource.Page{
		"Start":  {Title: "Start", Extract: "start extract", Mapping: map[string]string{"CONCEPT_00": "Target"}},
		"Target": {Title: "Target", Extract: "target extract", Mapping: map[string]string{}},
	}}
	llm := &fakeLLM{responses: []*llmadapter.AdapterResponse{
		{ConceptID: "CONCEPT_00", ParsingMethod: llmadapter.ParsingStructured, StructuredParsingSuccess: true, Confidence: confidence(0.9)},
	}}
	ar := &fakeArchive{}
	pub := &fakePublisher{}

	o := New(wiki, llm, ar, pub, 0, 0, 0)
	cfg := RunConfig{Models: []string{"model-a"}, StartPage: "Start", TargetPage: "Target", MaxSteps: 10, MaxLoops: 3, MaxHallucinationRetries: 3}

	summary, results, err := o.RunBenchmark(context.Background(), cfg, "run-1", &StopFlag{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.SucceededCount)
	require.Len(t, results, 1)
	assert.Equal(t, "success", results[0].Metrics.Status)
	assert.Equal(t, []string{"Start", "Target"}, results[0].Metrics.Path)
	assert.Equal(t, 1, results[0].Metrics.TotalSteps)
}

func TestOrchestrator_TrivialSuccessWhenStartEqualsTarget(t *testing.T) {
	wiki := &fakeWiki{pages: map[string]*wikisource.Page{
		"Foo": {Title: "Foo", Extract: "foo extract", Mapping: map[string]string{}},
	}}
	llm := &fakeLLM{}
	ar := &fakeArchive{}
	pub := &fakePublisher{}

	o := New(wiki, llm, ar, pub, 0, 0, 0)
	cfg := RunConfig{Models: []string{"model-a"}, StartPage: "Foo", TargetPage: "Foo", MaxSteps: 10, MaxLoops: 3, MaxHallucinationRetries: 3}

	summary, results, err := o.RunBenchmark(context.Background(), cfg, "run-1", &StopFlag{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.SucceededCount)
	require.Len(t, results, 1)
	assert.Equal(t, "success", results[0].Metrics.Status)
	assert.Equal(t, []string{"Foo"}, results[0].Metrics.Path)
	assert.Equal(t, 0, results[0].Metrics.TotalSteps)
	assert.Equal(t, 0, llm.calls)
}

func TestOrchestrator_HallucinationRetriesExcludedFromTotalSteps(t *testing.T) {
	wiki := &fakeWiki{pages: map[string]*wikisource.Page{
		"Start": {Title: "Start", Extract: "start extract", Mapping: map[string]string{"CONCEPT_00": "Target"}},
	}}
	llm := &fakeLLM{responses: []*llmadapter.AdapterResponse{
		{ConceptID: "CONCEPT_99", ParsingMethod: llmadapter.ParsingStructured, StructuredParsingSuccess: true, Confidence: confidence(0.9)},
		{ConceptID: "CONCEPT_98", ParsingMethod: llmadapter.ParsingStructured, StructuredParsingSuccess: true, Confidence: confidence(0.9)},
		{ConceptID: "CONCEPT_97", ParsingMethod: llmadapter.ParsingStructured, StructuredParsingSuccess: true, Confidence: confidence(0.9)},
	}}
	ar := &fakeArchive{}
	pub := &fakePublisher{}

	o := New(wiki, llm, ar, pub, 0, 0, 0)
	cfg := RunConfig{Models: []string{"model-a"}, StartPage: "Start", TargetPage: "Target", MaxSteps: 10, MaxLoops: 3, MaxHallucinationRetries: 2}

	summary, results, err := o.RunBenchmark(context.Background(), cfg, "run-1", &StopFlag{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.FailedCount)
	require.Len(t, results, 1)
	assert.Equal(t, "failed", results[0].Metrics.Status)
	assert.Equal(t, 0, results[0].Metrics.TotalSteps)
}

func TestOrchestrator_HallucinationThenValidChoiceSucceeds(t *testing.T) {
	wiki := &fakeWiki{pages: map[string]*wikisource.Page{
		"Start":  {Title: "Start", Extract: "e", Mapping: map[string]string{"CONCEPT_00": "Target"}},
		"Target": {Title: "Target", Extract: "e", Mapping: map[string]string{}},
	}}
	llm := &fakeLLM{responses: []*llmadapter.AdapterResponse{
		{ConceptID: "CONCEPT_99", ParsingMethod: llmadapter.ParsingRegex},
		{ConceptID: "CONCEPT_00", ParsingMethod: llmadapter.ParsingStructured, StructuredParsingSuccess: true},
	}}
	ar := &fakeArchive{}
	pub := &fakePublisher{}

	o := New(wiki, llm, ar, pub, 0, 0, 0)
	cfg := RunConfig{Models: []string{"model-a"}, StartPage: "Start", TargetPage: "Target", MaxSteps: 10, MaxLoops: 3, MaxHallucinationRetries: 3}

	_, results, err := o.RunBenchmark(context.Background(), cfg, "run-2", &StopFlag{})
	require.NoError(t, err)
	assert.Equal(t, "success", results[0].Metrics.Status)
	assert.Equal(t, 1, results[0].Metrics.HallucinationCount)
}

func TestOrchestrator_FailsAfterMaxHallucinationRetries(t *testing.T) {
	wiki := &fakeWiki{pages: map[string]*wikisource.Page{
		"Start": {Title: "Start", Extract: "e", Mapping: map[string]string{"CONCEPT_00": "Other"}},
	}}
	llm := &fakeLLM{responses: []*llmadapter.AdapterResponse{
		{ConceptID: "CONCEPT_99"},
		{ConceptID: "CONCEPT_99"},
	}}
	ar := &fakeArchive{}
	pub := &fakePublisher{}

	o := New(wiki, llm, ar, pub, 0, 0, 0)
	cfg := RunConfig{Models: []string{"model-a"}, StartPage: "Start", TargetPage: "Target", MaxSteps: 10, MaxLoops: 3, MaxHallucinationRetries: 2}

	_, results, err := o.RunBenchmark(context.Background(), cfg, "run-3", &StopFlag{})
	require.NoError(t, err)
	assert.Equal(t, "failed", results[0].Metrics.Status)
	assert.Contains(t, results[0].Metrics.Reason, "max hallucination retries")
}

func TestOrchestrator_StopFlagStopsBeforeNextModel(t *testing.T) {
	wiki := &fakeWiki{pages: map[string]*wikisource.Page{
		"Start": {Title: "Start", Extract: "e", Mapping: map[string]string{}},
	}}
	llm := &fakeLLM{}
	ar := &fakeArchive{}
	pub := &fakePublisher{}

	stop := &StopFlag{}
	stop.Request()

	o := New(wiki, llm, ar, pub, 0, 0, 0)
	cfg := RunConfig{Models: []string{"model-a", "model-b"}, StartPage: "Start", TargetPage: "Target", MaxSteps: 10, MaxLoops: 3, MaxHallucinationRetries: 3}

	summary, results, err := o.RunBenchmark(context.Background(), cfg, "run-4", stop)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, 2, summary.StoppedCount)
}

func TestOrchestrator_LoopDetectionFailsRun(t *testing.T) {
	wiki := &fakeWiki{pages: map[string]*wikisource.Page{
		"A": {Title: "A", Extract: "e", Mapping: map[string]string{"CONCEPT_00": "B"}},
		"B": {Title: "B", Extract: "e", Mapping: map[string]string{"CONCEPT_00": "A"}},
	}}
	llm := &fakeLLM{responses: []*llmadapter.AdapterResponse{
		{ConceptID: "CONCEPT_00"},
		{ConceptID: "CONCEPT_00"},
		{ConceptID: "CONCEPT_00"},
		{ConceptID: "CONCEPT_00"},
	}}
	ar := &fakeArchive{}
	pub := &fakePublisher{}

	o := New(wiki, llm, ar, pub, 0, 0, 0)
	cfg := RunConfig{Models: []string{"model-a"}, StartPage: "A", TargetPage: "Z", MaxSteps: 10, MaxLoops: 2, MaxHallucinationRetries: 5}

	_, results, err := o.RunBenchmark(context.Background(), cfg, "run-5", &StopFlag{})
	require.NoError(t, err)
	assert.Equal(t, "failed", results[0].Metrics.Status)
	assert.Contains(t, results[0].Metrics.Reason, "loop detected")
}
