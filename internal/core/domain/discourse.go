package domain

type RelationType string

// Declaration order matters: it breaks keyword-count ties during classification.
const (
	RelationCausal       RelationType = "causal"
	RelationConditional  RelationType = "conditional"
	RelationContrastive  RelationType = "contrastive"
	RelationCoordinating RelationType = "coordinating"
	RelationProgressive  RelationType = "progressive"
	RelationExemplifying RelationType = "exemplifying"
	RelationComparative  RelationType = "comparative"
	RelationSummarizing  RelationType = "summarizing"
	RelationExplanatory  RelationType = "explanatory"
	RelationTemporal     RelationType = "temporal"
	RelationPurposive    RelationType = "purposive"
	RelationConcessive   RelationType = "concessive"
	RelationBackground   RelationType = "background"
)

// RelationOrder lists the twelve keyword-driven relations in declaration order.
var RelationOrder = []RelationType{
	RelationCausal,
	RelationConditional,
	RelationContrastive,
	RelationCoordinating,
	RelationProgressive,
	RelationExemplifying,
	RelationComparative,
	RelationSummarizing,
	RelationExplanatory,
	RelationTemporal,
	RelationPurposive,
	RelationConcessive,
}

type DiscourseSentence struct {
	Text        string       `json:"text"`
	SourceIndex int          `json:"source_index"`
	Relation    RelationType `json:"relation"`
	Confidence  float64      `json:"confidence"`
	Entities    []string     `json:"entities"`
}

type TopicBridge struct {
	Entity          string   `json:"entity"`
	Sentences       []string `json:"sentences"`
	LinkedSentences int      `json:"linked_sentences"`
}

type EntityTriple struct {
	Entity1      string `json:"entity1"`
	Relation     string `json:"relation"`
	Entity2      string `json:"entity2"`
	BridgeEntity string `json:"bridge_entity"`
	Sentence1    string `json:"sentence1"`
	Sentence2    string `json:"sentence2"`
}

const MaxEntityTriples = 10

type DiscourseGraph struct {
	SubSentences  []DiscourseSentence `json:"sub_sentences"`
	CoreSentences []DiscourseSentence `json:"core_sentences"`
	TopicBridges  []TopicBridge       `json:"topic_bridges"`
	EntityTriples []EntityTriple      `json:"entity_triples"`
}

// FusionResult pairs the graph with its synthesized line-per-sentence text.
type FusionResult struct {
	Graph DiscourseGraph `json:"graph"`
	Text  string         `json:"text"`
}
