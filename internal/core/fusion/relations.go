package fusion

import (
	"math"
	"strings"

	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
)

// classifyRelation picks the relation with the most keywords present in the
// sentence. Ties go to the earlier relation in domain.RelationOrder.
func classifyRelation(sentence string, lex Lexicon) (domain.RelationType, float64) {
	best := domain.RelationBackground
	bestScore := 0
	for _, rel := range domain.RelationOrder {
		score := 0
		for _, keyword := range lex.Relations[rel] {
			if containsKeyword(sentence, keyword) {
				score++
			}
		}
		if score > bestScore {
			best = rel
			bestScore = score
		}
	}
	if bestScore == 0 {
		return domain.RelationBackground, 0
	}
	return best, math.Min(float64(bestScore)/3.0, 1.0)
}

// containsKeyword treats "..." inside a keyword as a gap: every part must
// appear in order.
func containsKeyword(sentence, keyword string) bool {
	if !strings.Contains(keyword, "...") {
		return strings.Contains(sentence, keyword)
	}
	rest := sentence
	for _, part := range strings.Split(keyword, "...") {
		if part == "" {
			continue
		}
		idx := strings.Index(rest, part)
		if idx < 0 {
			return false
		}
		rest = rest[idx+len(part):]
	}
	return true
}

func isSubordinateRelation(rel domain.RelationType) bool {
	switch rel {
	case domain.RelationBackground, domain.RelationExemplifying, domain.RelationExplanatory, domain.RelationTemporal:
		return true
	default:
		return false
	}
}

func needsConfidenceForCore(rel domain.RelationType) bool {
	switch rel {
	case domain.RelationCausal, domain.RelationConditional, domain.RelationPurposive:
		return true
	default:
		return false
	}
}

func isCoreSentence(rel domain.RelationType, confidence float64) bool {
	if isSubordinateRelation(rel) {
		return false
	}
	if needsConfidenceForCore(rel) {
		return confidence > 0.5
	}
	return true
}
