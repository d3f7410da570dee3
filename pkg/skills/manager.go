package skills

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ChunkyTortoise/EnterpriseHub-sub048/pkg/config"
	"github.com/ChunkyTortoise/EnterpriseHub-sub048/pkg/mcp"
	"github.com/ChunkyTortoise/EnterpriseHub-sub048/pkg/models"
	"github.com/ChunkyTortoise/EnterpriseHub-sub048/pkg/tokens"
)

// fallbackConfidence is reported when discovery fails and the registry's
// fallback skill is substituted.
const fallbackConfidence = 0.5

// keywordHints map response-text fragments to skills when the router's
// answer is not parseable JSON. Checked in order; a hint only matches if the
// skill is actually registered.
var keywordHints = []struct {
	keyword string
	skill   string
}{
	{"stall", "stall_recovery"},
	{"disqualif", "lead_disqualification"},
	{"confrontational", "confrontational_handling"},
}

// UsageStatistics are the manager's cumulative in-memory counters.
type UsageStatistics struct {
	Discoveries        int64 `json:"discoveries"`
	DiscoveryFallbacks int64 `json:"discovery_fallbacks"`
	Executions         int64 `json:"executions"`
	ExecutionFailures  int64 `json:"execution_failures"`
	CacheHits          int64 `json:"cache_hits"`
	CacheMisses        int64 `json:"cache_misses"`
}

// Manager performs two-phase skill selection and execution. Skill content is
// cached in memory; the cache is keyed by registry version so a registry
// reload invalidates it wholesale.
type Manager struct {
	cfg     *config.SkillsConfig
	caller  mcp.Caller
	tracker *tokens.Tracker
	logger  *slog.Logger

	mu           sync.Mutex
	registry     *Registry
	cache        map[string]string
	cacheVersion string
	stats        UsageStatistics
}

// NewManager loads the registry and returns a ready manager. The tracker may
// be nil; usage recording is then skipped.
func NewManager(cfg *config.SkillsConfig, caller mcp.Caller, tracker *tokens.Tracker) *Manager {
	reg := LoadRegistry(cfg.RegistryPath)
	return &Manager{
		cfg:          cfg,
		caller:       caller,
		tracker:      tracker,
		logger:       slog.With("component", "skills_manager"),
		registry:     reg,
		cache:        make(map[string]string),
		cacheVersion: reg.Version,
	}
}

// ReloadRegistry re-reads the registry document. A version change flushes
// the skill content cache.
func (m *Manager) ReloadRegistry() {
	reg := LoadRegistry(m.cfg.RegistryPath)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.registry = reg
	if reg.Version != m.cacheVersion {
		m.cache = make(map[string]string)
		m.cacheVersion = reg.Version
		m.logger.Info("Skill cache invalidated", "version", reg.Version)
	}
}

// DiscoverInput identifies the task whose skill is being selected and
// carries the compact discovery context.
type DiscoverInput struct {
	TaskID   string
	UserID   string
	TaskType string
	Context  map[string]any
}

// DiscoverSkills runs the router skill over the compact context and returns
// the selection. Failures never propagate: the registry fallback is returned
// with confidence 0.5 instead.
func (m *Manager) DiscoverSkills(ctx context.Context, in DiscoverInput) *models.SkillDiscovery {
	m.mu.Lock()
	m.stats.Discoveries++
	reg := m.registry
	m.mu.Unlock()

	discovery := m.runDiscovery(ctx, in, reg)

	m.recordUsage(ctx, in.TaskID, m.cfg.DiscoveryTokens, in.TaskType, in.UserID,
		models.ApproachDiscovery, firstOrEmpty(discovery.Skills), &discovery.Confidence)
	return discovery
}

func (m *Manager) runDiscovery(ctx context.Context, in DiscoverInput, reg *Registry) *models.SkillDiscovery {
	prompt := buildDiscoveryPrompt(in.TaskType, in.Context)

	result, err := m.caller.CallTool(ctx, m.cfg.RouterServer, m.cfg.RouterTool,
		map[string]any{"prompt": prompt})
	if err != nil {
		m.logger.Warn("Skill discovery call failed, using fallback",
			"task_type", in.TaskType, "error", err)
		return m.fallbackDiscovery(reg)
	}

	text := resultText(result)

	if discovery, ok := parseDiscoveryJSON(text); ok {
		valid := discovery.Skills[:0]
		for _, name := range discovery.Skills {
			if reg.Has(name) {
				valid = append(valid, name)
			}
		}
		discovery.Skills = valid
		if len(discovery.Skills) > 0 {
			return discovery
		}
	}

	// Keyword scan over the raw response.
	lower := strings.ToLower(text)
	for _, hint := range keywordHints {
		if strings.Contains(lower, hint.keyword) && reg.Has(hint.skill) {
			return &models.SkillDiscovery{
				Skills:          []string{hint.skill},
				Confidence:      0.6,
				Reasoning:       "Keyword match in router response",
				DetectedPattern: hint.keyword,
			}
		}
	}

	return m.fallbackDiscovery(reg)
}

func (m *Manager) fallbackDiscovery(reg *Registry) *models.SkillDiscovery {
	m.mu.Lock()
	m.stats.DiscoveryFallbacks++
	m.mu.Unlock()

	return &models.SkillDiscovery{
		Skills:          []string{reg.Fallback},
		Confidence:      fallbackConfidence,
		Reasoning:       "Fallback due to discovery failure",
		DetectedPattern: "fallback",
	}
}

// LoadSkill resolves the skill content: core/ first, then extended/, then
// the registry fallback. Content is cached until the registry version
// changes.
func (m *Manager) LoadSkill(name string) (string, error) {
	m.mu.Lock()
	if content, ok := m.cache[name]; ok {
		m.stats.CacheHits++
		m.mu.Unlock()
		return content, nil
	}
	m.stats.CacheMisses++
	fallback := m.registry.Fallback
	m.mu.Unlock()

	content, err := m.readSkillFile(name)
	if err != nil && name != fallback {
		m.logger.Warn("Skill not found, loading fallback", "skill", name, "fallback", fallback)
		content, err = m.readSkillFile(fallback)
	}
	if err != nil {
		return "", fmt.Errorf("load skill %q: %w", name, err)
	}

	m.mu.Lock()
	m.cache[name] = content
	m.mu.Unlock()
	return content, nil
}

func (m *Manager) readSkillFile(name string) (string, error) {
	for _, tier := range []string{"core", "extended"} {
		path := filepath.Join(m.cfg.SkillsDir, tier, name+".md")
		data, err := os.ReadFile(path)
		if err == nil {
			return string(data), nil
		}
	}
	return "", fmt.Errorf("skill %q not found under %s", name, m.cfg.SkillsDir)
}

// ExecuteInput identifies the task and carries the execution context whose
// values fill the skill's {{key}} placeholders.
type ExecuteInput struct {
	TaskID    string
	UserID    string
	TaskType  string
	SkillName string
	Context   map[string]any

	// Approach labels the usage record. Empty means progressive; the
	// coordinator's skills adapter sets mesh_coordinated.
	Approach string
}

// ExecuteSkill loads the skill, substitutes placeholders, and invokes the
// language model through the tool port. Transport failures return a safe
// fallback response with OK=false rather than an error.
func (m *Manager) ExecuteSkill(ctx context.Context, in ExecuteInput) *models.SkillExecution {
	m.mu.Lock()
	m.stats.Executions++
	m.mu.Unlock()

	content, err := m.LoadSkill(in.SkillName)
	if err != nil {
		return m.failedExecution(ctx, in, err)
	}

	prompt := substitute(content, in.Context)

	result, err := m.caller.CallTool(ctx, m.cfg.RouterServer, m.cfg.RouterTool,
		map[string]any{"prompt": prompt})
	if err != nil {
		return m.failedExecution(ctx, in, err)
	}

	response := resultText(result)
	estimated := estimateTokens(result, prompt, response)
	meta, _, metaErr := m.metadataLocked(in.SkillName)

	confidence := 1.0
	if metaErr == nil && meta.ConfidenceThreshold > 0 {
		confidence = meta.ConfidenceThreshold
	}

	exec := &models.SkillExecution{
		SkillUsed:       in.SkillName,
		Response:        response,
		Confidence:      confidence,
		EstimatedTokens: estimated,
		OK:              true,
	}

	approach := in.Approach
	if approach == "" {
		approach = models.ApproachProgressive
	}
	m.recordUsage(ctx, in.TaskID, estimated, in.TaskType, in.UserID,
		approach, in.SkillName, &exec.Confidence)
	return exec
}

func (m *Manager) failedExecution(ctx context.Context, in ExecuteInput, cause error) *models.SkillExecution {
	m.mu.Lock()
	m.stats.ExecutionFailures++
	m.mu.Unlock()

	m.logger.Warn("Skill execution failed", "skill", in.SkillName, "error", cause)
	return &models.SkillExecution{
		SkillUsed: in.SkillName,
		Response:  "I'm having trouble processing that right now. Let me connect you with a team member who can help.",
		OK:        false,
	}
}

// GetSkillMetadata returns the registry metadata for a skill.
func (m *Manager) GetSkillMetadata(name string) (models.SkillMetadata, models.SkillTier, error) {
	return m.metadataLocked(name)
}

func (m *Manager) metadataLocked(name string) (models.SkillMetadata, models.SkillTier, error) {
	m.mu.Lock()
	reg := m.registry
	m.mu.Unlock()
	return reg.Metadata(name)
}

// GetUsageStatistics returns a snapshot of the cumulative counters.
func (m *Manager) GetUsageStatistics() UsageStatistics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// Registry returns the current registry snapshot.
func (m *Manager) Registry() *Registry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registry
}

func (m *Manager) recordUsage(ctx context.Context, taskID string, tokenCount int, taskType, userID, approach, skillName string, confidence *float64) {
	if m.tracker == nil {
		return
	}
	err := m.tracker.RecordUsage(ctx, tokens.RecordUsageInput{
		TaskID:     taskID,
		Tokens:     tokenCount,
		TaskType:   taskType,
		UserID:     userID,
		Approach:   approach,
		SkillName:  skillName,
		Confidence: confidence,
	})
	if err != nil {
		m.logger.Warn("Usage recording failed", "task_id", taskID, "error", err)
	}
}

// buildDiscoveryPrompt renders the compact discovery context for the router
// skill. Only the context map travels; no skill content is loaded.
func buildDiscoveryPrompt(taskType string, context map[string]any) string {
	var b strings.Builder
	b.WriteString("Select the best skill for this task.\n")
	b.WriteString("task_type: " + taskType + "\n")
	for k, v := range context {
		fmt.Fprintf(&b, "%s: %v\n", k, v)
	}
	b.WriteString(`Answer as JSON: {"skills": ["name"], "confidence": 0.0, "reasoning": "", "detected_pattern": ""}`)
	return b.String()
}

// parseDiscoveryJSON extracts and decodes the first JSON object in text.
func parseDiscoveryJSON(text string) (*models.SkillDiscovery, bool) {
	obj, ok := firstJSONObject(text)
	if !ok {
		return nil, false
	}
	var discovery models.SkillDiscovery
	if err := json.Unmarshal([]byte(obj), &discovery); err != nil {
		return nil, false
	}
	if len(discovery.Skills) == 0 {
		return nil, false
	}
	return &discovery, true
}

// firstJSONObject returns the first balanced {...} span in text, honoring
// string literals and escapes.
func firstJSONObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// substitute replaces flat {{key}} placeholders with context values.
func substitute(content string, context map[string]any) string {
	for k, v := range context {
		content = strings.ReplaceAll(content, "{{"+k+"}}", fmt.Sprint(v))
	}
	return content
}

// resultText extracts the text payload from a normalized tool result.
func resultText(result map[string]any) string {
	for _, key := range []string{"text", "response", "content"} {
		if s, ok := result[key].(string); ok {
			return s
		}
	}
	data, _ := json.Marshal(result)
	return string(data)
}

// estimateTokens prefers the provider-reported count, then falls back to a
// 4-chars-per-token estimate over prompt plus response.
func estimateTokens(result map[string]any, prompt, response string) int {
	switch v := result["tokens_used"].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return (len(prompt) + len(response)) / 4
}

func firstOrEmpty(skills []string) string {
	if len(skills) == 0 {
		return ""
	}
	return skills[0]
}
