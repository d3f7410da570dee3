// Package config loads and validates the mesh deployment configuration.
// The authoritative source is a mesh.json document merged over built-in
// defaults, with {{.VAR}} environment expansion applied before parsing.
package config

// Config is the fully resolved mesh configuration, ready for use.
type Config struct {
	Routing   *RoutingConfig   `json:"routing"`
	Budget    *BudgetConfig    `json:"budget"`
	Monitors  *MonitorConfig   `json:"monitors"`
	Retention *RetentionConfig `json:"retention"`
	Pricing   *PricingConfig   `json:"pricing"`
	Skills    *SkillsConfig    `json:"skills"`
	KV        *KVConfig        `json:"kv"`
	Tools     *ToolsConfig     `json:"tools"`
}

// Default returns a Config populated with every built-in default.
func Default() *Config {
	return &Config{
		Routing:   DefaultRoutingConfig(),
		Budget:    DefaultBudgetConfig(),
		Monitors:  DefaultMonitorConfig(),
		Retention: DefaultRetentionConfig(),
		Pricing:   DefaultPricingConfig(),
		Skills:    DefaultSkillsConfig(),
		KV:        DefaultKVConfig(),
		Tools:     DefaultToolsConfig(),
	}
}

// Stats summarizes loaded configuration for startup logging.
type Stats struct {
	ToolServers   int
	PricingModels int
}

// Stats returns summary counts for startup logging.
func (c *Config) Stats() Stats {
	return Stats{
		ToolServers:   len(c.Tools.Servers),
		PricingModels: len(c.Pricing.Models),
	}
}
