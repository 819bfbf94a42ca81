package mining

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// Chunk is one unit of policy text handed to extraction.
type Chunk struct {
	ID       string        `json:"id"`
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
}

// ChunkMetadata carries the chunker's classification.
type ChunkMetadata struct {
	Type     string `json:"type,omitempty"`
	RuleType string `json:"rule_type,omitempty"`
}

// chunkTypeCriteria marks chunks cut from a numbered criteria list.
const chunkTypeCriteria = "policy_criteria"

// Rule categories assigned by Classify.
const (
	CategoryExclusions    = "Exclusions"
	CategoryDocumentation = "Required Documentation"
	CategoryNecessity     = "Medical Necessity"
	CategoryEligibility   = "Eligibility"
)

// Keyword sets checked in priority order. Negative phrasing is checked
// first because "not medically necessary" also contains the positive form.
var (
	exclusionKeywords = []string{
		"not medically necessary", "investigational", "experimental",
		"unproven", "not covered", "exclusion", "contraindicated",
	}
	documentationKeywords = []string{"documentation", "medical record", "submit"}
	necessityKeywords     = []string{"medically necessary", "medical necessity"}
)

var criterionStart = regexp.MustCompile(`^\d+\.\s+`)

// LoadChunks decodes a JSON array of chunks. Chunks without text are
// rejected; chunks without an id are numbered by position.
func LoadChunks(r io.Reader) ([]Chunk, error) {
	var chunks []Chunk
	if err := json.NewDecoder(r).Decode(&chunks); err != nil {
		return nil, fmt.Errorf("failed to decode chunks: %w", err)
	}
	for i := range chunks {
		if strings.TrimSpace(chunks[i].Text) == "" {
			return nil, fmt.Errorf("chunk %d has no text", i)
		}
		if chunks[i].ID == "" {
			chunks[i].ID = "rule_" + strconv.Itoa(i+1)
		}
	}
	return chunks, nil
}

// SplitPolicyText cuts policy text into one chunk per numbered criterion
// ("1. ...", "2. ..."). Unnumbered lines continue the current criterion;
// lines before the first criterion are dropped.
func SplitPolicyText(text string) []Chunk {
	var (
		chunks  []Chunk
		current []string
	)

	flush := func() {
		if len(current) == 0 {
			return
		}
		body := strings.TrimSpace(strings.Join(current, "\n"))
		chunks = append(chunks, Chunk{
			ID:   "rule_" + strconv.Itoa(len(chunks)+1),
			Text: body,
			Metadata: ChunkMetadata{
				Type:     chunkTypeCriteria,
				RuleType: Classify(body),
			},
		})
	}

	for _, line := range strings.Split(text, "\n") {
		stripped := strings.TrimSpace(line)
		if stripped == "" {
			continue
		}
		if criterionStart.MatchString(stripped) {
			flush()
			current = []string{stripped}
			continue
		}
		if len(current) > 0 {
			current = append(current, stripped)
		}
	}
	flush()

	return chunks
}

// Classify assigns a rule category from keywords. Eligibility is the
// default bucket.
func Classify(text string) string {
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, exclusionKeywords):
		return CategoryExclusions
	case containsAny(lower, documentationKeywords):
		return CategoryDocumentation
	case containsAny(lower, necessityKeywords):
		return CategoryNecessity
	default:
		return CategoryEligibility
	}
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// PolicyMetadata is the header information found in policy text.
type PolicyMetadata struct {
	PolicyNumber  string `json:"policy_number,omitempty"`
	EffectiveDate string `json:"effective_date,omitempty"`
	Version       string `json:"version,omitempty"`
}

var (
	policyNumberPattern  = regexp.MustCompile(`(?i)Policy\s*(?:Number|#)[:.]?\s*([A-Z0-9\-]+)`)
	effectiveDatePattern = regexp.MustCompile(`(?i)Effective\s*Date[:.]?\s*(\d{1,2}[/-]\d{1,2}[/-]\d{4})`)
	versionPattern       = regexp.MustCompile(`(?i)Version[:.]?\s*(\d+(?:\.\d+)?)`)

	policyHeader  = regexp.MustCompile(`(?i)\n\s*Policy\s*\n`)
	sectionEnding = regexp.MustCompile(`(?i)\n\s*(?:References|Coding|Background|Procedure Codes|Diagnosis Codes)\s*`)
)

// ExtractPolicyMetadata scans text for policy number, effective date and
// version. Missing fields stay empty.
func ExtractPolicyMetadata(text string) PolicyMetadata {
	var meta PolicyMetadata
	if m := policyNumberPattern.FindStringSubmatch(text); m != nil {
		meta.PolicyNumber = m[1]
	}
	if m := effectiveDatePattern.FindStringSubmatch(text); m != nil {
		meta.EffectiveDate = m[1]
	}
	if m := versionPattern.FindStringSubmatch(text); m != nil {
		meta.Version = m[1]
	}
	return meta
}

// PolicySection returns the body of the "Policy" section, ending at the
// next References, Coding, Background or code list heading. Text without a
// Policy heading is returned whole.
func PolicySection(text string) string {
	// Leading newline lets a heading on the first line match
	padded := "\n" + text
	start := policyHeader.FindStringIndex(padded)
	if start == nil {
		return strings.TrimSpace(text)
	}

	body := padded[start[1]:]
	if end := sectionEnding.FindStringIndex(body); end != nil {
		body = body[:end[0]]
	}
	return strings.TrimSpace(body)
}
