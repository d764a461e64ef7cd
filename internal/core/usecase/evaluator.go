package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
	"github.com/kirillkom/evidence-retrieval/internal/core/ports"
)

const (
	satisfiedMinResults      = 3
	satisfiedMinAvgScore     = 0.6
	satisfiedMinContentRatio = 0.8
	defaultAdvisorTimeout    = 20 * time.Second
)

type EvaluationObserver interface {
	ObserveEvaluation(source domain.AssessmentSource, satisfied bool, score float64)
}

// QualityEvaluator scores a candidate set with a deterministic heuristic and
// optionally lets the semantic oracle refine the verdict.
type QualityEvaluator struct {
	oracle         ports.SemanticOracle
	advisorTimeout time.Duration
	observer       EvaluationObserver
	logger         *slog.Logger
}

type EvaluatorOption func(*QualityEvaluator)

func WithSemanticOracle(oracle ports.SemanticOracle) EvaluatorOption {
	return func(e *QualityEvaluator) { e.oracle = oracle }
}

func WithAdvisorTimeout(timeout time.Duration) EvaluatorOption {
	return func(e *QualityEvaluator) {
		if timeout > 0 {
			e.advisorTimeout = timeout
		}
	}
}

func WithEvaluationObserver(observer EvaluationObserver) EvaluatorOption {
	return func(e *QualityEvaluator) { e.observer = observer }
}

func WithEvaluatorLogger(logger *slog.Logger) EvaluatorOption {
	return func(e *QualityEvaluator) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func NewQualityEvaluator(opts ...EvaluatorOption) *QualityEvaluator {
	e := &QualityEvaluator{
		advisorTimeout: defaultAdvisorTimeout,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate never fails. Advisor errors, malformed advisor output and advisor
// panics all fall back to the heuristic assessment.
func (e *QualityEvaluator) Evaluate(
	ctx context.Context,
	query string,
	candidates domain.CandidateSet,
	req domain.Requirements,
) domain.QualityAssessment {
	assessment := heuristicAssessment(candidates, req)
	if e.oracle != nil {
		if advice, ok := e.consultAdvisor(ctx, query, candidates, req); ok {
			assessment = applyAdvice(assessment, advice)
		}
	}
	if e.observer != nil {
		e.observer.ObserveEvaluation(assessment.Source, assessment.IsSatisfied, assessment.Score)
	}
	return assessment
}

func heuristicAssessment(candidates domain.CandidateSet, req domain.Requirements) domain.QualityAssessment {
	results := candidates.Results()
	n := len(results)

	withContent := 0
	scoreSum := 0.0
	var haystack strings.Builder
	for _, r := range results {
		if strings.TrimSpace(r.Content) != "" {
			withContent++
		}
		scoreSum += r.Score
		haystack.WriteString(strings.ToLower(r.Title))
		haystack.WriteByte('\n')
		haystack.WriteString(strings.ToLower(r.Content))
		haystack.WriteByte('\n')
	}

	contentRatio := 0.0
	avgScore := 0.0
	if n > 0 {
		contentRatio = float64(withContent) / float64(n)
		avgScore = scoreSum / float64(n)
	}

	score := 0.4*contentRatio + 0.4*avgScore + 0.2*math.Min(float64(n)/10.0, 1.0)
	satisfied := n >= satisfiedMinResults && avgScore >= satisfiedMinAvgScore && contentRatio >= satisfiedMinContentRatio

	text := haystack.String()
	missingEntities := missingTerms(text, req.Entities)
	missingMetrics := missingTerms(text, req.Metrics)
	missingAttributes := missingTerms(text, req.Attributes)

	return domain.QualityAssessment{
		Score:                clamp01(score),
		IsSatisfied:          satisfied,
		ShouldExpand:         !satisfied,
		MissingEntities:      missingEntities,
		MissingMetrics:       missingMetrics,
		MissingAttributes:    missingAttributes,
		ExpansionSuggestions: unionStrings(missingEntities, missingMetrics, missingAttributes),
		Source:               domain.AssessmentHeuristic,
	}
}

func (e *QualityEvaluator) consultAdvisor(
	ctx context.Context,
	query string,
	candidates domain.CandidateSet,
	req domain.Requirements,
) (advice domain.AdvisorAssessment, ok bool) {
	defer func() {
		if recovered := recover(); recovered != nil {
			e.logger.Error("advisor_panic", "panic", fmt.Sprint(recovered))
			ok = false
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, e.advisorTimeout)
	defer cancel()

	advice, err := e.oracle.Assess(callCtx, query, candidates, req)
	if err != nil {
		event := "advisor_unavailable"
		if domain.IsKind(err, domain.ErrAdvisorParse) {
			event = "advisor_parse_failed"
		}
		e.logger.Warn(event, "error", err)
		return domain.AdvisorAssessment{}, false
	}
	return advice, true
}

func applyAdvice(base domain.QualityAssessment, advice domain.AdvisorAssessment) domain.QualityAssessment {
	out := base
	if advice.QualityScore != nil && !math.IsNaN(*advice.QualityScore) {
		out.Score = clamp01(*advice.QualityScore)
	}
	if advice.IsSatisfied != nil {
		out.IsSatisfied = *advice.IsSatisfied
	}
	if advice.ShouldExpand != nil {
		out.ShouldExpand = *advice.ShouldExpand
	}
	if suggestions := unionStrings(advice.ExpansionSuggestions); len(suggestions) > 0 {
		out.ExpansionSuggestions = suggestions
	}
	out.Reasoning = strings.TrimSpace(advice.Reasoning)
	out.Source = domain.AssessmentAdvisor
	return out
}

func missingTerms(haystack string, terms []string) []string {
	out := make([]string, 0)
	seen := make(map[string]struct{}, len(terms))
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		if !strings.Contains(haystack, strings.ToLower(term)) {
			out = append(out, term)
		}
	}
	return out
}

// unionStrings concatenates lists keeping the first occurrence of each
// trimmed, non-empty value.
func unionStrings(lists ...[]string) []string {
	out := make([]string, 0)
	seen := make(map[string]struct{})
	for _, list := range lists {
		for _, v := range list {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
