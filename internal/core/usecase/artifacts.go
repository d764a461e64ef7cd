package usecase

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
)

const untitledEvidence = "Untitled evidence"

var (
	markupTagPattern     = regexp.MustCompile(`<[^>]+>`)
	whitespaceRunPattern = regexp.MustCompile(`\s+`)
	controlCharPattern   = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f-\x9f]`)
	imageURLPattern      = regexp.MustCompile(`(?i)https?://[^\s"'<>]+\.(?:jpg|jpeg|png|gif|webp|bmp|svg)(?:\?[^\s"'<>]*)?`)
)

var fileDetailKeys = []string{"file_name", "recognized_title", "category", "tags", "author"}

// ArtifactSeparator splits a ranked candidate set into the model-facing
// cleaned text and the user-facing artifact list. The two views never share
// content: image links are appended to the cleaned copy only.
type ArtifactSeparator struct{}

func NewArtifactSeparator() ArtifactSeparator {
	return ArtifactSeparator{}
}

func (ArtifactSeparator) Separate(candidates domain.CandidateSet) (string, []domain.Artifact) {
	results := candidates.Results()
	parts := make([]string, 0, len(results))
	artifacts := make([]domain.Artifact, 0, len(results))

	for i, r := range results {
		metadata := extractArtifactMetadata(r.Metadata)

		title := strings.TrimSpace(r.Title)
		if title == "" {
			title = untitledEvidence
		}
		cleaned := cleanContent(r.Content)
		if images := imageReferences(r.Metadata); len(images) > 0 {
			cleaned = cleaned + "\n" + strings.Join(images, "\n")
		}
		parts = append(parts, fmt.Sprintf("[Evidence %d] %s\n%s", i+1, title, cleaned))

		fileID := r.MetadataString(domain.MetaFileID)
		if fileID == "" {
			fileID = nestedString(r.Metadata, domain.MetaFileDetail, domain.MetaFileID)
		}
		artifacts = append(artifacts, domain.Artifact{
			Content:  r.Content,
			Score:    roundScore(r.Score),
			Metadata: metadata,
			Source:   r.SourceEngine,
			Title:    r.Title,
			FileID:   fileID,
			FileName: domain.StringValue(metadata, domain.MetaFileName),
		})
	}

	sort.SliceStable(artifacts, func(i, j int) bool {
		return artifacts[i].Score > artifacts[j].Score
	})
	return strings.Join(parts, "\n\n"), artifacts
}

func cleanContent(content string) string {
	if content == "" {
		return ""
	}
	cleaned := markupTagPattern.ReplaceAllString(content, "")
	cleaned = whitespaceRunPattern.ReplaceAllString(cleaned, " ")
	cleaned = controlCharPattern.ReplaceAllString(cleaned, "")
	return strings.TrimSpace(cleaned)
}

func roundScore(score float64) float64 {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0
	}
	return math.Round(score*1000) / 1000
}

// extractArtifactMetadata copies the result metadata and lifts the file
// detail and graph relation sub-objects into flat keys.
func extractArtifactMetadata(src map[string]any) map[string]any {
	out := make(map[string]any, len(src)+len(fileDetailKeys))
	for k, v := range src {
		out[k] = v
	}

	if detail, ok := asMap(src[domain.MetaFileDetail]); ok {
		for _, key := range fileDetailKeys {
			if v, present := detail[key]; present && v != nil {
				out[key] = v
			}
		}
	}

	if relation, ok := asMap(src[domain.MetaGraphRelation]); ok {
		out[domain.MetaGraphRelation] = map[string]any{
			"start_entity":         firstNonEmpty(domain.StringValue(relation, "start_entity"), nestedString(relation, "start_node", "entity_id")),
			"end_entity":           firstNonEmpty(domain.StringValue(relation, "end_entity"), nestedString(relation, "end_node", "entity_id")),
			"relation_description": firstNonEmpty(domain.StringValue(relation, "relation_description"), nestedString(relation, "relation", "description")),
		}
	}
	return out
}

// imageReferences collects image links from media_content.images and from
// the chunk text attached to graph relation endpoints, in first-seen order.
func imageReferences(metadata map[string]any) []string {
	found := make([]string, 0)

	if media, ok := asMap(metadata[domain.MetaMediaContent]); ok {
		found = append(found, asStrings(media["images"])...)
	}

	if relation, ok := asMap(metadata[domain.MetaGraphRelation]); ok {
		chunks := make([]string, 0)
		chunks = append(chunks, asStrings(relation["start_node_chunks"])...)
		chunks = append(chunks, asStrings(relation["end_node_chunks"])...)
		for _, node := range []string{"start_node", "end_node"} {
			if n, ok := asMap(relation[node]); ok {
				chunks = append(chunks, asStrings(n["chunks"])...)
			}
		}
		for _, chunk := range chunks {
			found = append(found, imageSources(chunk)...)
			found = append(found, imageURLPattern.FindAllString(chunk, -1)...)
		}
	}
	return unionStrings(found)
}

func imageSources(fragment string) []string {
	if !strings.Contains(strings.ToLower(fragment), "<img") {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return nil
	}
	out := make([]string, 0)
	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok && strings.TrimSpace(src) != "" {
			out = append(out, strings.TrimSpace(src))
		}
	})
	return out
}

func asMap(v any) (map[string]any, bool) {
	switch typed := v.(type) {
	case map[string]any:
		return typed, true
	case map[string]string:
		out := make(map[string]any, len(typed))
		for k, s := range typed {
			out[k] = s
		}
		return out, true
	default:
		return nil, false
	}
}

func asStrings(v any) []string {
	switch typed := v.(type) {
	case []string:
		return typed
	case []any:
		out := make([]string, 0, len(typed))
		for _, item := range typed {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{typed}
	default:
		return nil
	}
}

func nestedString(m map[string]any, outer, inner string) string {
	nested, ok := asMap(m[outer])
	if !ok {
		return ""
	}
	return domain.StringValue(nested, inner)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
