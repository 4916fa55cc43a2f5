package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yberthe/call-triage/internal/geo"
	"github.com/yberthe/call-triage/internal/guidance"
	"github.com/yberthe/call-triage/internal/triage"
	"github.com/yberthe/call-triage/pkg/logger"
)

// ErrCallEnded is returned when the call ended while a collaborator call was
// in flight; the result has been discarded and the transport should drop it.
var ErrCallEnded = errors.New("call ended during processing")

// FallbackReply is spoken when the reply generator is unavailable.
const FallbackReply = "Pouvez-vous me décrire la situation et me donner votre adresse exacte ?"

// summaryPlaceholder replaces a malformed or failed summarization result.
const summaryPlaceholder = "Résumé indisponible"

// ReplyGenerator produces the dispatcher's free-text utterances. It is an
// external collaborator and must tolerate being unavailable.
type ReplyGenerator interface {
	GenerateReply(ctx context.Context, history []Message) (string, error)
	// Summarize returns a one-sentence summary of the call, at most 100
	// characters, format "Patient [âge/sexe si connus], [symptômes
	// principaux], [contexte]".
	Summarize(ctx context.Context, history []Message) (string, error)
}

// Geocoder resolves addresses and finds nearby facilities. A failure here is
// logged and swallowed; a missing geolocation never blocks the reply.
type Geocoder interface {
	Locate(ctx context.Context, address string) (*geo.Location, error)
	NearestFacilities(ctx context.Context, loc geo.Location, radiusKm float64, kind string) ([]geo.Facility, error)
}

// Report is the durable triage record handed to the persistence
// collaborator. The core writes it and never reads it back.
type Report struct {
	ID                 string
	CallID             string
	Tier               triage.Tier
	Score              int
	Summary            string
	Confidence         float64
	MatchedCriteria    []string
	IsPartial          bool
	FacilityName       string
	FacilityDistanceKm float64
	ETAMinutes         int
	CreatedAt          time.Time
}

// ReportSink persists triage reports.
type ReportSink interface {
	StoreReport(ctx context.Context, report *Report) error
}

// Config holds the orchestration thresholds.
type Config struct {
	// MinMessagesForClassification is the non-system message count at
	// which classification starts running.
	MinMessagesForClassification int
	// FullSummaryThreshold is the non-system message count at which the
	// snapshot switches from the cheap partial summary to the LLM one.
	FullSummaryThreshold int
	FacilityRadiusKm     float64
	FacilityKind         string
}

// Orchestrator sequences the pipeline for each inbound utterance: extraction,
// merge, reply generation, threshold-gated classification, geocoding
// enrichment, guidance and persistence. There is no fatal error class:
// every path produces a best-effort reply.
type Orchestrator struct {
	store      *Store
	extractor  *triage.Extractor
	classifier *triage.Engine
	guidance   *guidance.Engine
	replies    ReplyGenerator
	geocoder   Geocoder
	reports    ReportSink
	config     Config
	logger     *logger.Logger
}

// NewOrchestrator creates a session orchestrator. The geocoder and report
// sink may be nil; the corresponding steps are then skipped.
func NewOrchestrator(
	store *Store,
	extractor *triage.Extractor,
	classifier *triage.Engine,
	guidanceEngine *guidance.Engine,
	replies ReplyGenerator,
	geocoder Geocoder,
	reports ReportSink,
	config Config,
	log *logger.Logger,
) *Orchestrator {
	if config.MinMessagesForClassification <= 0 {
		config.MinMessagesForClassification = 2
	}
	if config.FullSummaryThreshold <= 0 {
		config.FullSummaryThreshold = 4
	}
	if config.FacilityRadiusKm <= 0 {
		config.FacilityRadiusKm = 50
	}
	return &Orchestrator{
		store:      store,
		extractor:  extractor,
		classifier: classifier,
		guidance:   guidanceEngine,
		replies:    replies,
		geocoder:   geocoder,
		reports:    reports,
		config:     config,
		logger:     log.Named("orchestrator"),
	}
}

// Store exposes the underlying session store for transport-level reads.
func (o *Orchestrator) Store() *Store {
	return o.store
}

// Handle processes one inbound caller utterance and returns the reply text
// plus an optional triage snapshot. Utterances for one call are serialized;
// distinct calls run in parallel.
func (o *Orchestrator) Handle(ctx context.Context, callID, utterance string) (Reply, error) {
	e := o.store.checkout(callID)
	defer e.release()

	now := time.Now().UTC()

	// Extract and merge before anything can block, so the facts reflect
	// this utterance even if every collaborator fails.
	update := o.extractor.Extract(utterance, e.ctx.Facts)
	e.stateMu.Lock()
	e.ctx.Facts.Merge(update)
	e.ctx.Messages = append(e.ctx.Messages, Message{Role: RoleCaller, Content: utterance, Timestamp: now})
	history := make([]Message, len(e.ctx.Messages))
	copy(history, e.ctx.Messages)
	facts := e.ctx.Facts
	e.stateMu.Unlock()

	replyText, err := o.replies.GenerateReply(ctx, history)
	if err != nil || strings.TrimSpace(replyText) == "" {
		o.logger.Warn("Reply generator unavailable, using fallback",
			logger.String("call_id", callID),
			logger.Error(err))
		replyText = FallbackReply
	}
	if e.isClosed() {
		return Reply{}, ErrCallEnded
	}

	e.stateMu.Lock()
	e.ctx.Messages = append(e.ctx.Messages, Message{Role: RoleDispatcher, Content: replyText, Timestamp: time.Now().UTC()})
	nonSystem := e.ctx.NonSystemMessageCount()
	callerUtterances := e.ctx.CallerUtterances()
	e.stateMu.Unlock()

	var snapshot *TriageSnapshot
	if nonSystem >= o.config.MinMessagesForClassification {
		result := o.classifier.Classify(facts)
		snapshot = o.buildSnapshot(ctx, callID, result, facts, nonSystem, callerUtterances, history)
		if e.isClosed() {
			return Reply{}, ErrCallEnded
		}

		if kind := guidance.Select(result, facts); kind != guidance.KindNone {
			e.stateMu.Lock()
			instruction, state := o.guidance.Advance(e.ctx.Guidance, kind, utterance)
			e.ctx.Guidance = state
			e.stateMu.Unlock()
			if instruction != "" {
				replyText = replyText + "\n" + instruction
			}
		}

		e.stateMu.Lock()
		e.ctx.lastSnapshot = snapshot
		e.stateMu.Unlock()

		o.persist(ctx, snapshot)
	}

	return Reply{Text: replyText, Snapshot: snapshot}, nil
}

// buildSnapshot composes the two-tier triage snapshot: a cheap concatenated
// summary below the full-summary threshold, the LLM summary at or above it.
func (o *Orchestrator) buildSnapshot(
	ctx context.Context,
	callID string,
	result triage.ClassificationResult,
	facts triage.CollectedFacts,
	nonSystem int,
	callerUtterances []string,
	history []Message,
) *TriageSnapshot {
	snapshot := &TriageSnapshot{
		CallID:          callID,
		Tier:            result.Tier,
		Score:           result.Score,
		MatchedCriteria: result.MatchedCriteria,
		Escalate:        result.EscalateToPhysician,
		GeneratedAt:     time.Now().UTC(),
	}

	if nonSystem < o.config.FullSummaryThreshold {
		snapshot.Summary = truncateRunes(strings.Join(callerUtterances, " ; "), 200)
		snapshot.IsPartial = true
		snapshot.Confidence = 0.5
	} else {
		summary, err := o.replies.Summarize(ctx, history)
		summary = strings.TrimSpace(summary)
		if err != nil || summary == "" {
			o.logger.Warn("Summarization failed, using placeholder",
				logger.String("call_id", callID),
				logger.Error(err))
			summary = summaryPlaceholder
		}
		snapshot.Summary = truncateRunes(summary, 100)
		snapshot.IsPartial = false
		snapshot.Confidence = 0.85
	}

	o.enrichWithLocation(ctx, snapshot, facts, result.Tier)
	return snapshot
}

// enrichWithLocation attaches nearest-facility and ETA data when an address
// has been collected. Failures are logged and swallowed.
func (o *Orchestrator) enrichWithLocation(ctx context.Context, snapshot *TriageSnapshot, facts triage.CollectedFacts, tier triage.Tier) {
	if o.geocoder == nil || facts.Address == "" {
		return
	}

	loc, err := o.geocoder.Locate(ctx, facts.Address)
	if err != nil {
		o.logger.Warn("Geocoding failed",
			logger.String("call_id", snapshot.CallID),
			logger.Error(err))
		return
	}
	if loc == nil {
		return
	}
	snapshot.NormalizedAddress = loc.NormalizedAddress

	facilities, err := o.geocoder.NearestFacilities(ctx, *loc, o.config.FacilityRadiusKm, o.config.FacilityKind)
	if err != nil {
		o.logger.Warn("Facility lookup failed",
			logger.String("call_id", snapshot.CallID),
			logger.Error(err))
		return
	}
	if len(facilities) == 0 {
		return
	}
	nearest := facilities[0]
	snapshot.NearestFacility = &nearest
	snapshot.ETAMinutes = geo.EstimateETA(nearest.DistanceKm, tier)
}

// persist hands the snapshot to the persistence collaborator. Errors are
// logged, never surfaced.
func (o *Orchestrator) persist(ctx context.Context, snapshot *TriageSnapshot) {
	if o.reports == nil || snapshot == nil {
		return
	}
	report := &Report{
		ID:              uuid.NewString(),
		CallID:          snapshot.CallID,
		Tier:            snapshot.Tier,
		Score:           snapshot.Score,
		Summary:         snapshot.Summary,
		Confidence:      snapshot.Confidence,
		MatchedCriteria: snapshot.MatchedCriteria,
		IsPartial:       snapshot.IsPartial,
		ETAMinutes:      snapshot.ETAMinutes,
		CreatedAt:       time.Now().UTC(),
	}
	if snapshot.NearestFacility != nil {
		report.FacilityName = snapshot.NearestFacility.Name
		report.FacilityDistanceKm = snapshot.NearestFacility.DistanceKm
	}
	if err := o.reports.StoreReport(ctx, report); err != nil {
		o.logger.Error("Failed to persist triage report",
			logger.String("call_id", snapshot.CallID),
			logger.Error(err))
	}
}

// EndCall removes the call context synchronously and persists the last
// snapshot as the final report. Ending an unknown call is a no-op.
func (o *Orchestrator) EndCall(ctx context.Context, callID string) {
	c := o.store.End(callID)
	if c == nil {
		return
	}
	if c.lastSnapshot != nil {
		o.persist(ctx, c.lastSnapshot)
	}
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
