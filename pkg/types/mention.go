package types

// ExtractedMention is the transient input produced by the extraction
// collaborator: a name, a claimed type, and candidate fact strings pulled
// from one source document. It is consumed by resolution and discarded.
type ExtractedMention struct {
	Name  string     `json:"name"`
	Type  EntityType `json:"type"`
	Facts []string   `json:"facts,omitempty"`
}

// SourceDocument is one document's worth of extraction output: the mentions
// plus the original text, which is forwarded to arbitration for context.
type SourceDocument struct {
	// SourceID identifies the originating document (email id, note path, ...).
	SourceID string `json:"source_id"`

	// Text is the raw source content. Optional; used only as arbitration context.
	Text string `json:"text,omitempty"`

	Mentions []ExtractedMention `json:"mentions"`
}

// ResolutionCandidate is a transient scoring record used within one
// resolution call: an entity plus its combined score and the human-readable
// reasons that produced it.
type ResolutionCandidate struct {
	Entity  *Entity
	Score   float64
	Reasons []string
}

// ResolvedEntity is the transient output of one resolution: the original
// mention, the matched entity (nil when none existed before), a confidence
// in [0,1], whether the entity is newly created, and a justification.
type ResolvedEntity struct {
	Mention    ExtractedMention
	Entity     *Entity
	Confidence float64
	IsNew      bool
	Reason     string
}
