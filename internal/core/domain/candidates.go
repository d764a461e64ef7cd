package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
)

// CandidateSet is a deduplicated sequence of results ordered by score
// descending. The zero value is an empty set. A set is never modified after
// construction; Merge returns a new set.
type CandidateSet struct {
	results []SearchResult
}

// MergeCandidates concatenates lists in priority order, keeps the first
// occurrence of every dedup key and stable-sorts the survivors by score.
func MergeCandidates(lists ...[]SearchResult) CandidateSet {
	total := 0
	for _, list := range lists {
		total += len(list)
	}

	seen := make(map[string]struct{}, total)
	out := make([]SearchResult, 0, total)
	for _, list := range lists {
		for _, r := range list {
			r = r.Normalized()
			key := DedupKey(r)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, r)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return CandidateSet{results: out}
}

// Merge treats c and other as two result lists, c first.
func (c CandidateSet) Merge(other CandidateSet) CandidateSet {
	return MergeCandidates(c.results, other.results)
}

func (c CandidateSet) Len() int {
	return len(c.results)
}

func (c CandidateSet) At(i int) SearchResult {
	return c.results[i].Clone()
}

// Results returns a copy of the ordered results.
func (c CandidateSet) Results() []SearchResult {
	out := make([]SearchResult, len(c.results))
	for i, r := range c.results {
		out[i] = r.Clone()
	}
	return out
}

func (c CandidateSet) MarshalJSON() ([]byte, error) {
	if c.results == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(c.results)
}

func (c *CandidateSet) UnmarshalJSON(data []byte) error {
	var results []SearchResult
	if err := json.Unmarshal(data, &results); err != nil {
		return err
	}
	*c = MergeCandidates(results)
	return nil
}

// DedupKey is the id when present, else the partition metadata, else a
// SHA-256 fingerprint of the whitespace-normalized content.
func DedupKey(r SearchResult) string {
	if id := strings.TrimSpace(r.ID); id != "" {
		return "id:" + id
	}
	if partition := strings.TrimSpace(r.MetadataString(MetaPartition)); partition != "" {
		return "partition:" + partition
	}
	return "content:" + ContentFingerprint(r.Content)
}

// ContentFingerprint hashes content after trimming and collapsing whitespace
// runs so formatting-only differences share a key.
func ContentFingerprint(content string) string {
	normalized := strings.Join(strings.Fields(content), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
