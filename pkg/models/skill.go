package models

// SkillTier classifies where a skill lives in the progressive hierarchy.
type SkillTier string

// Skill tiers.
const (
	SkillTierCore      SkillTier = "core"
	SkillTierExtended  SkillTier = "extended"
	SkillTierFallback  SkillTier = "fallback"
	SkillTierDiscovery SkillTier = "discovery"
)

// SkillMetadata describes a registered skill's routing characteristics.
type SkillMetadata struct {
	Purpose             string  `json:"purpose"`
	EstimatedTokens     int     `json:"estimated_tokens"`
	ConfidenceThreshold float64 `json:"confidence_threshold"`
	Priority            int     `json:"priority"`
}

// Skill is a named prompt/handler artifact loaded on demand.
type Skill struct {
	Name     string        `json:"name"`
	Tier     SkillTier     `json:"tier"`
	Locator  string        `json:"locator"` // path or URL
	Metadata SkillMetadata `json:"metadata"`
}

// SkillDiscovery is the outcome of the two-phase discovery step: which
// skills to load, with what confidence, and why.
type SkillDiscovery struct {
	Skills          []string `json:"skills"`
	Confidence      float64  `json:"confidence"`
	Reasoning       string   `json:"reasoning,omitempty"`
	DetectedPattern string   `json:"detected_pattern,omitempty"`
}

// SkillExecution is the outcome of executing a loaded skill.
type SkillExecution struct {
	SkillUsed       string  `json:"skill_used"`
	Response        string  `json:"response"`
	Confidence      float64 `json:"confidence"`
	EstimatedTokens int     `json:"estimated_tokens"`
	OK              bool    `json:"ok"`
}
