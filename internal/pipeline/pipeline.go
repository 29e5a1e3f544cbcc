// Package pipeline orchestrates one question end to end: guard checks,
// intent classification, schema-aware analysis, SQL synthesis, parallel
// execution, document retrieval, and answer merging.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/queryfed/queryfed/internal/analyzer"
	"github.com/queryfed/queryfed/internal/classifier"
	"github.com/queryfed/queryfed/internal/config"
	"github.com/queryfed/queryfed/internal/docsearch"
	"github.com/queryfed/queryfed/internal/executor"
	"github.com/queryfed/queryfed/internal/llm"
	"github.com/queryfed/queryfed/internal/merger"
	"github.com/queryfed/queryfed/internal/models"
	"github.com/queryfed/queryfed/internal/schema"
	"github.com/queryfed/queryfed/internal/security"
	"github.com/queryfed/queryfed/internal/synthesizer"
)

// Pipeline wires the stages together. Searcher may be nil when document
// search is disabled; the routing contract then degrades to database-only
// answers with an explicit note.
type Pipeline struct {
	classifier *classifier.Classifier
	analyzer   *analyzer.Analyzer
	synth      *synthesizer.Synthesizer
	exec       *executor.ParallelExecutor
	merge      *merger.Merger
	catalog    schema.Catalog
	searcher   docsearch.Searcher
	guard      *security.QueryGuard
	pii        *security.PIIDetector
	audit      *security.AuditLogger
	routing    config.RoutingConfig
	gen        llm.Generator
}

type Deps struct {
	Classifier  *classifier.Classifier
	Analyzer    *analyzer.Analyzer
	Synthesizer *synthesizer.Synthesizer
	Executor    *executor.ParallelExecutor
	Merger      *merger.Merger
	Catalog     schema.Catalog
	Searcher    docsearch.Searcher
	Guard       *security.QueryGuard
	PII         *security.PIIDetector
	Audit       *security.AuditLogger
	Routing     config.RoutingConfig
	Generator   llm.Generator
}

func New(d Deps) *Pipeline {
	return &Pipeline{
		classifier: d.Classifier,
		analyzer:   d.Analyzer,
		synth:      d.Synthesizer,
		exec:       d.Executor,
		merge:      d.Merger,
		catalog:    d.Catalog,
		searcher:   d.Searcher,
		guard:      d.Guard,
		pii:        d.PII,
		audit:      d.Audit,
		routing:    d.Routing,
		gen:        d.Generator,
	}
}

// Result is one answered question.
type Result struct {
	Kind            models.IntentKind
	Answer          string
	Sources         []models.Source
	Bucket          models.ConfidenceBucket
	NewConversation bool
	ExecutionTimeMs int64
}

// Ask answers one question. Smalltalk gets a direct reply without touching
// any database; data requests run the full federated route.
func (p *Pipeline) Ask(ctx context.Context, req *models.AskRequest) (*Result, error) {
	start := time.Now()
	req.SetDefaults()

	ctx, cancel := context.WithTimeout(ctx, time.Duration(req.TimeoutSec)*time.Second)
	defer cancel()

	cmd, query := classifier.ParseCommand(req.Query)
	history := req.History
	newConversation := false
	switch cmd {
	case classifier.CommandNewConversation:
		history = nil
		newConversation = true
		if query == "" {
			return p.done(&Result{
				Kind:            models.IntentConversation,
				Answer:          "Starting fresh. What would you like to know?",
				NewConversation: true,
			}, start), nil
		}
	case classifier.CommandForceConversation:
		if query == "" {
			query = req.Query
		}
		reply := p.converse(ctx, query, history, "")
		return p.done(&Result{Kind: models.IntentConversation, Answer: reply}, start), nil
	}

	if res := p.guard.Validate(query); !res.Valid {
		return nil, fmt.Errorf("%w: %s", models.ErrClassification, res.Message)
	}
	if keyword, found := p.pii.Scan(query); found {
		return nil, fmt.Errorf("%w: query touches restricted data (%s)", models.ErrClassification, keyword)
	}

	cls, err := p.classifier.Classify(ctx, query, history)
	if err != nil {
		return nil, err
	}

	if cls.Kind == models.IntentConversation {
		reply := p.conversationReply(ctx, query, history, cls)
		res := p.done(&Result{
			Kind:            models.IntentConversation,
			Answer:          reply,
			NewConversation: newConversation,
		}, start)
		p.audit.LogPipeline(query, "", "", 0, 0, res.ExecutionTimeMs)
		return res, nil
	}

	answer, err := p.answerInformation(ctx, query, cls.Tokens, req)
	if err != nil {
		return nil, err
	}
	res := p.done(&Result{
		Kind:            models.IntentInformation,
		Answer:          answer.Answer,
		Sources:         answer.Sources,
		Bucket:          answer.ConfidenceBucket,
		NewConversation: newConversation,
	}, start)
	p.audit.LogPipeline(query, "", string(answer.ConfidenceBucket),
		countSources(answer.Sources, models.SourceDatabase),
		countSources(answer.Sources, models.SourceDocument),
		res.ExecutionTimeMs)
	return res, nil
}

func (p *Pipeline) answerInformation(ctx context.Context, query string, tokens []string, req *models.AskRequest) (*models.MergedAnswer, error) {
	snapshots, err := p.catalog.GetAllSchemas(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: schema catalog: %v", models.ErrExecution, err)
	}

	intent, err := p.analyzer.Analyze(ctx, query, tokens, snapshots)
	if err != nil {
		return nil, err
	}
	bucket := intent.Bucket(p.routing.ConfidenceLow, p.routing.ConfidenceHigh)

	runDatabases := bucket != models.ConfidenceLow && len(intent.Databases) > 0
	runDocuments := bucket != models.ConfidenceHigh || !runDatabases
	if p.searcher == nil {
		runDocuments = false
	}

	log.Info().
		Str("bucket", string(bucket)).
		Float64("confidence", intent.Confidence).
		Int("databases", len(intent.Databases)).
		Bool("run_databases", runDatabases).
		Bool("run_documents", runDocuments).
		Msg("routing decided")

	var dbResults map[string]*models.QueryExecutionResult
	var chunks []models.DocumentChunk

	g, gctx := errgroup.WithContext(ctx)
	if runDatabases {
		g.Go(func() error {
			p.synth.SynthesizeAll(gctx, intent, tokens, req.MaxRows)
			timeout := time.Duration(req.TimeoutSec) * time.Second
			dbResults = p.exec.Execute(gctx, intent.Databases, req.MaxRows, timeout)
			return nil
		})
	}
	if runDocuments {
		g.Go(func() error {
			found, err := p.searcher.SearchDocuments(gctx, query, req.MaxChunks)
			if err != nil {
				// Document search is an enrichment path. Its failure
				// degrades the answer, it does not abort the run.
				log.Warn().Err(err).Msg("document search failed")
				return nil
			}
			chunks = found
			return nil
		})
	}
	_ = g.Wait() // both branches record failures in their own results

	if dbResults == nil {
		dbResults = map[string]*models.QueryExecutionResult{}
	}
	return p.merge.Merge(ctx, query, bucket, dbResults, chunks)
}

func (p *Pipeline) done(res *Result, start time.Time) *Result {
	res.ExecutionTimeMs = time.Since(start).Milliseconds()
	return res
}

func countSources(sources []models.Source, typ models.SourceType) int {
	n := 0
	for _, s := range sources {
		if s.Type == typ {
			n++
		}
	}
	return n
}
