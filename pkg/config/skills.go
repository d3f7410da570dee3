package config

// SkillsConfig locates the progressive skill registry and its content tree.
type SkillsConfig struct {
	// RegistryPath is the skill registry JSON document. A missing or
	// malformed registry degrades to a fallback-only registry.
	RegistryPath string `json:"registry_path"`

	// SkillsDir is the root of the skill content tree; skills resolve
	// under core/ first, then extended/.
	SkillsDir string `json:"skills_dir"`

	// RouterServer and RouterTool name the tool-port binding used for
	// skill discovery and execution (the LLM endpoint).
	RouterServer string `json:"router_server"`
	RouterTool   string `json:"router_tool"`

	// DiscoveryTokens is the fixed token charge recorded per discovery
	// invocation (the router skill's compact context is constant-sized).
	DiscoveryTokens int `json:"discovery_tokens" validate:"min=1"`
}

// DefaultSkillsConfig returns the built-in skills defaults.
func DefaultSkillsConfig() *SkillsConfig {
	return &SkillsConfig{
		RegistryPath:    "./skills/registry.json",
		SkillsDir:       "./skills",
		RouterServer:    "llm",
		RouterTool:      "generate",
		DiscoveryTokens: 103,
	}
}
