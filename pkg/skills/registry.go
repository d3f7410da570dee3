// Package skills implements progressive skill selection: a cheap discovery
// pass picks the specialized prompt for a task, which is then loaded and
// executed instead of a large generic prompt.
package skills

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/ChunkyTortoise/EnterpriseHub-sub048/pkg/models"
)

// Registry is the parsed skill registry document. Core skills are preferred
// over extended ones at load time; the fallback is used whenever discovery or
// resolution fails.
type Registry struct {
	Version  string                          `json:"version"`
	Core     map[string]models.SkillMetadata `json:"core_skills"`
	Extended map[string]models.SkillMetadata `json:"extended_skills"`
	Fallback string                          `json:"fallback_skill"`

	// Mesh-wide efficiency figures carried alongside the skill maps.
	ExpectedReduction float64 `json:"expected_reduction"`
	BaselineTokens    int     `json:"baseline_tokens"`
	TargetTokens      int     `json:"target_tokens"`
}

// defaultFallback is used when the registry itself cannot be loaded.
const defaultFallback = "general_conversation"

// emptyRegistry is the safe degradation: no skills, fallback only.
func emptyRegistry() *Registry {
	return &Registry{
		Version:  "0",
		Core:     map[string]models.SkillMetadata{},
		Extended: map[string]models.SkillMetadata{},
		Fallback: defaultFallback,
	}
}

// LoadRegistry reads and parses the registry JSON. A missing or malformed
// file is not fatal: the returned registry is the safe empty one and the
// problem is logged.
func LoadRegistry(path string) *Registry {
	logger := slog.With("component", "skill_registry")

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn("Skill registry not found, using fallback-only registry", "path", path)
		} else {
			logger.Warn("Skill registry unreadable, using fallback-only registry", "path", path, "error", err)
		}
		return emptyRegistry()
	}

	var reg Registry
	if err := json.Unmarshal(data, &reg); err != nil {
		logger.Warn("Skill registry malformed, using fallback-only registry", "path", path, "error", err)
		return emptyRegistry()
	}
	if reg.Core == nil {
		reg.Core = map[string]models.SkillMetadata{}
	}
	if reg.Extended == nil {
		reg.Extended = map[string]models.SkillMetadata{}
	}
	if reg.Fallback == "" {
		reg.Fallback = defaultFallback
	}

	logger.Info("Skill registry loaded",
		"version", reg.Version,
		"core_skills", len(reg.Core),
		"extended_skills", len(reg.Extended),
		"fallback", reg.Fallback)
	return &reg
}

// Metadata returns the metadata and tier for a named skill.
func (r *Registry) Metadata(name string) (models.SkillMetadata, models.SkillTier, error) {
	if meta, ok := r.Core[name]; ok {
		return meta, models.SkillTierCore, nil
	}
	if meta, ok := r.Extended[name]; ok {
		return meta, models.SkillTierExtended, nil
	}
	if name == r.Fallback {
		return models.SkillMetadata{Purpose: "fallback"}, models.SkillTierFallback, nil
	}
	return models.SkillMetadata{}, "", fmt.Errorf("skill %q not in registry", name)
}

// Has reports whether the skill is registered (core, extended, or fallback).
func (r *Registry) Has(name string) bool {
	_, _, err := r.Metadata(name)
	return err == nil
}
