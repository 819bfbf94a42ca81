package types

// CandidateRule is a machine-proposed rule awaiting review, plus provenance.
// ID is the candidate's own identifier, distinct from RuleData.ID.
type CandidateRule struct {
	ID            string       `json:"id"`
	SourceChunkID string       `json:"source_chunk_id"`
	SourceText    string       `json:"source_text"`
	Confidence    float64      `json:"confidence"`
	Status        ReviewStatus `json:"status"`
	RuleData      Rule         `json:"rule_data"`
}

// ToRule materializes the evaluation shape of an approved candidate.
// Conditions are copied so later edits to the candidate do not leak into
// rules already handed to the engine or the indexer.
func (c CandidateRule) ToRule() Rule {
	r := c.RuleData
	if c.RuleData.Conditions != nil {
		r.Conditions = append([]RuleCondition(nil), c.RuleData.Conditions...)
	}
	if c.RuleData.ParentPolicyID != nil {
		r = r.WithPolicyID(*c.RuleData.ParentPolicyID)
	}
	return r
}

// PolicyMeta is the registry's record of an ingested policy.
type PolicyMeta struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Registry is the persisted document layout: policy metadata plus every
// candidate in insertion order. Candidates are never physically deleted.
type Registry struct {
	Policies map[string]PolicyMeta `json:"policies"`
	Rules    []CandidateRule       `json:"rules"`
}

// NewRegistry returns an empty registry document.
func NewRegistry() *Registry {
	return &Registry{
		Policies: make(map[string]PolicyMeta),
		Rules:    []CandidateRule{},
	}
}
