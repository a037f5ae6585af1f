// Package chat implements the turn pipeline: every user message passes
// through document extraction, language-control detection, language
// normalization, prompt construction, model dispatch, response
// normalization, and persistence, in that order.
package chat

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/parleyhq/parley/internal/errors"
	"github.com/parleyhq/parley/internal/profile"
	"github.com/parleyhq/parley/plugin/docextract"
	"github.com/parleyhq/parley/plugin/langdetect"
	"github.com/parleyhq/parley/plugin/llm"
	"github.com/parleyhq/parley/plugin/translate"
	"github.com/parleyhq/parley/server/finops"
	"github.com/parleyhq/parley/server/internal/observability"
	"github.com/parleyhq/parley/store"
)

// Stage names for metrics and logs.
const (
	StageDocExtract = "doc_extract"
	StageControl    = "language_control"
	StageDetect     = "language_detect"
	StageDispatch   = "dispatch"
	StageNormalize  = "normalize"
	StagePersist    = "persist"
)

// TurnRequest is one inbound user message, optionally carrying a document.
type TurnRequest struct {
	Message string
	// Document is the raw attached file, nil when the turn has none.
	Document []byte
	// DocumentType is the attachment's MIME type; sniffed when empty.
	DocumentType string
}

// TurnResult is what the caller renders back to the user.
type TurnResult struct {
	ConversationID string `json:"conversation_id"`
	Response       string `json:"response"`
	ModelID        string `json:"model_id"`
	// PreferredLanguage is set only when this turn changed it.
	PreferredLanguage string `json:"preferred_language,omitempty"`
	// LanguageChanged is true when the message was a language-change
	// instruction and the response is the acknowledgment.
	LanguageChanged bool `json:"language_changed,omitempty"`
	// TranslationDegraded is true when a best-effort translation failed
	// somewhere in the turn and original text was carried through.
	TranslationDegraded bool `json:"translation_degraded,omitempty"`
}

// Pipeline wires the capability plugins to the store and runs turns through
// the stages. One Pipeline serves all conversations; per-conversation
// ordering is the caller's responsibility.
type Pipeline struct {
	store      *store.Store
	extractor  docextract.Extractor
	detector   langdetect.Detector
	translator translate.Translator
	invoker    llm.Invoker
	profile    *profile.Profile

	// dispatchSem bounds in-flight model calls process-wide.
	dispatchSem *semaphore.Weighted

	logger  *slog.Logger
	metrics *observability.Metrics
	usage   *finops.UsageMonitor
}

// NewPipeline creates a pipeline over the given capabilities.
func NewPipeline(
	st *store.Store,
	extractor docextract.Extractor,
	detector langdetect.Detector,
	translator translate.Translator,
	invoker llm.Invoker,
	prof *profile.Profile,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		store:       st,
		extractor:   extractor,
		detector:    detector,
		translator:  translator,
		invoker:     invoker,
		profile:     prof,
		dispatchSem: semaphore.NewWeighted(prof.MaxConcurrentDispatches),
		logger:      logger,
		metrics:     observability.GlobalMetrics(),
		usage:       finops.NewUsageMonitor(logger),
	}
}

// Usage returns the pipeline's spend monitor.
func (p *Pipeline) Usage() *finops.UsageMonitor {
	return p.usage
}

// Process runs one turn against a conversation. The caller must hold the
// conversation's turn lock so that concurrent requests for the same
// conversation do not interleave their read-dispatch-append sequences.
func (p *Pipeline) Process(ctx context.Context, conversation *store.Conversation, request *TurnRequest) (*TurnResult, error) {
	rc := observability.NewRequestContext(p.logger, conversation.UID, conversation.ModelID)
	p.metrics.RecordTurn()

	rc.Info("turn started",
		slog.Int(observability.LogFieldMessageLen, len(request.Message)),
		slog.Bool("has_document", len(request.Document) > 0),
	)

	docContext, err := p.extractDocument(ctx, rc, request)
	if err != nil {
		p.metrics.RecordTurnFailure()
		return nil, err
	}

	if code, ok := DetectLanguageSwitch(request.Message); ok {
		result, err := p.applyLanguageSwitch(ctx, rc, conversation, request, docContext, code)
		if err != nil {
			p.metrics.RecordTurnFailure()
		}
		return result, err
	}

	preferred := conversation.PreferredLanguage
	promptText := request.Message
	turnLanguage := preferred
	userDegraded := false

	if detected := p.detectLanguage(ctx, rc, request.Message); detected != "" {
		turnLanguage = detected
		if detected != preferred {
			translated, err := p.translateBestEffort(ctx, request.Message, detected, preferred)
			if err != nil {
				userDegraded = true
				rc.Warn("inbound translation degraded, dispatching original text",
					slog.String(observability.LogFieldLanguage, detected),
					slog.String("error", err.Error()),
				)
			} else {
				promptText = translated
			}
		}
	}

	model, ok := p.store.Registry().Get(conversation.ModelID)
	if !ok {
		p.metrics.RecordTurnFailure()
		return nil, errors.UnknownModel(conversation.ModelID)
	}
	messages := BuildPrompt(p.profile.SystemPrompt, conversation.Turns, promptText, docContext, model.MaxTokens)

	userTurn := store.Turn{
		Role:                store.RoleUser,
		Text:                request.Message,
		Language:            turnLanguage,
		CreatedTs:           time.Now().Unix(),
		TranslationDegraded: userDegraded,
	}
	if docContext != "" {
		userTurn.DocumentContext = &docContext
	}

	raw, err := p.dispatch(ctx, rc, conversation.ModelID, messages)
	if err != nil {
		// The user turn is part of the record even when the model call
		// failed; only the assistant turn is withheld.
		if _, persistErr := p.store.AppendTurns(ctx, conversation.UID, userTurn); persistErr != nil {
			rc.Error("failed to persist user turn after dispatch failure", persistErr)
		}
		p.metrics.RecordTurnFailure()
		return nil, err
	}

	responseText, responseLanguage, responseDegraded := p.normalizeResponse(ctx, rc, raw, preferred)

	assistantTurn := store.Turn{
		Role:                store.RoleAssistant,
		Text:                responseText,
		Language:            responseLanguage,
		CreatedTs:           time.Now().Unix(),
		TranslationDegraded: responseDegraded,
	}

	start := time.Now()
	_, err = p.store.AppendTurns(ctx, conversation.UID, userTurn, assistantTurn)
	p.metrics.RecordStage(StagePersist, time.Since(start), err)
	if err != nil {
		p.metrics.RecordTurnFailure()
		rc.Error("failed to persist turn pair", err)
		return nil, err
	}

	rc.Info("turn completed", slog.Int64(observability.LogFieldDuration, rc.DurationMs()))

	return &TurnResult{
		ConversationID:      conversation.UID,
		Response:            responseText,
		ModelID:             conversation.ModelID,
		TranslationDegraded: userDegraded || responseDegraded,
	}, nil
}

// extractDocument runs stage one. A turn with no document passes straight
// through; an extraction failure aborts the turn before anything persists.
func (p *Pipeline) extractDocument(ctx context.Context, rc *observability.RequestContext, request *TurnRequest) (string, error) {
	if len(request.Document) == 0 {
		return "", nil
	}

	start := time.Now()
	extractCtx, cancel := context.WithTimeout(ctx, p.profile.DocExtractTimeout)
	defer cancel()

	text, err := p.extractor.Extract(extractCtx, request.Document, request.DocumentType)
	p.metrics.RecordStage(StageDocExtract, time.Since(start), err)
	if err != nil {
		rc.Error("document extraction failed", err,
			slog.String(observability.LogFieldStage, StageDocExtract))
		return "", errors.DocumentProcessingFailed("could not extract document text", err)
	}

	rc.Debug("document extracted",
		slog.String(observability.LogFieldStage, StageDocExtract),
		slog.Int("extracted_chars", len(text)),
	)
	return text, nil
}

// applyLanguageSwitch handles a control message: the preferred language
// changes immediately and a system acknowledgment turn is recorded in place
// of a model response. The model is never dispatched.
func (p *Pipeline) applyLanguageSwitch(ctx context.Context, rc *observability.RequestContext, conversation *store.Conversation, request *TurnRequest, docContext, code string) (*TurnResult, error) {
	start := time.Now()

	updated, err := p.store.SetLanguage(ctx, conversation.UID, code)
	p.metrics.RecordStage(StageControl, time.Since(start), err)
	if err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	userTurn := store.Turn{
		Role:      store.RoleUser,
		Text:      request.Message,
		Language:  conversation.PreferredLanguage,
		CreatedTs: now,
	}
	if lang := p.detectLanguage(ctx, rc, request.Message); lang != "" {
		userTurn.Language = lang
	}
	if docContext != "" {
		userTurn.DocumentContext = &docContext
	}
	ack := store.Turn{
		Role:      store.RoleSystem,
		Text:      acknowledgment(code),
		Language:  code,
		CreatedTs: now,
	}

	if _, err := p.store.AppendTurns(ctx, conversation.UID, userTurn, ack); err != nil {
		return nil, err
	}

	rc.Info("preferred language changed",
		slog.String(observability.LogFieldStage, StageControl),
		slog.String(observability.LogFieldLanguage, updated.PreferredLanguage),
	)

	return &TurnResult{
		ConversationID:    conversation.UID,
		Response:          ack.Text,
		ModelID:           conversation.ModelID,
		PreferredLanguage: updated.PreferredLanguage,
		LanguageChanged:   true,
	}, nil
}

// detectLanguage returns the detected code when the detector is confident
// enough and the language is in the conversational set, otherwise "".
func (p *Pipeline) detectLanguage(ctx context.Context, rc *observability.RequestContext, text string) string {
	start := time.Now()
	detection, err := p.detector.Detect(ctx, text)
	p.metrics.RecordStage(StageDetect, time.Since(start), err)
	if err != nil {
		rc.Warn("language detection failed, using preferred language",
			slog.String("error", err.Error()))
		return ""
	}
	if detection.Confidence < p.profile.DetectConfidence {
		return ""
	}
	if !IsSupportedLanguage(detection.Language) {
		return ""
	}
	return detection.Language
}

// translateBestEffort translates under the stage timeout. Errors propagate
// so the caller can mark the turn degraded and continue with original text.
func (p *Pipeline) translateBestEffort(ctx context.Context, text, source, target string) (string, error) {
	translateCtx, cancel := context.WithTimeout(ctx, p.profile.TranslateTimeout)
	defer cancel()
	return p.translator.Translate(translateCtx, text, source, target)
}

// dispatch sends the prompt to the model under the concurrency bound and
// the dispatch timeout. Calls are never retried here.
func (p *Pipeline) dispatch(ctx context.Context, rc *observability.RequestContext, modelID string, messages []llm.Message) (string, error) {
	if err := p.dispatchSem.Acquire(ctx, 1); err != nil {
		return "", errors.ModelInvocationFailed("dispatch slot unavailable", err)
	}
	defer p.dispatchSem.Release(1)

	start := time.Now()
	dispatchCtx, cancel := context.WithTimeout(ctx, p.profile.DispatchTimeout)
	defer cancel()

	raw, err := p.invoker.Invoke(dispatchCtx, llm.Request{
		ModelID:   modelID,
		MaxTokens: responseReserveTokens,
		Messages:  messages,
	})
	p.metrics.RecordStage(StageDispatch, time.Since(start), err)

	promptTokens := 0
	for _, msg := range messages {
		promptTokens += estimateTokens(msg.Content)
	}
	p.usage.RecordDispatch(modelID, promptTokens, estimateTokens(raw), err)

	if err != nil {
		rc.Error("model dispatch failed", err,
			slog.String(observability.LogFieldStage, StageDispatch))
		if dispatchCtx.Err() == context.DeadlineExceeded {
			return "", errors.Timeout(StageDispatch, err)
		}
		return "", errors.ModelInvocationFailed("model invocation failed", err)
	}
	return raw, nil
}

// normalizeResponse brings the model's reply into the preferred language.
// Translation is best effort: on failure the reply passes through verbatim
// with the degraded marker set.
func (p *Pipeline) normalizeResponse(ctx context.Context, rc *observability.RequestContext, raw, preferred string) (text, language string, degraded bool) {
	start := time.Now()
	defer func() {
		p.metrics.RecordStage(StageNormalize, time.Since(start), nil)
	}()

	detected := p.detectLanguage(ctx, rc, raw)
	if detected == "" || detected == preferred {
		return raw, preferred, false
	}

	translated, err := p.translateBestEffort(ctx, raw, detected, preferred)
	if err != nil {
		rc.Warn("response translation degraded, returning original text",
			slog.String(observability.LogFieldLanguage, detected),
			slog.String("error", err.Error()),
		)
		return raw, detected, true
	}
	return translated, preferred, false
}
