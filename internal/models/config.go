package models

import (
	"strings"
	"time"
)

// PromptConfig is a saved prompt template with default parameters.
type PromptConfig struct {
	ID           string                 `json:"id"`
	Name         string                 `json:"name"`
	Description  string                 `json:"description,omitempty"`
	Prompt       string                 `json:"prompt"`
	SystemPrompt string                 `json:"system_prompt,omitempty"`
	Parameters   map[string]interface{} `json:"parameters"`
	Tags         []string               `json:"tags"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// PromptConfigSaveRequest is the body of POST /configs/save and PUT /configs/{id}.
type PromptConfigSaveRequest struct {
	Name         string                 `json:"name" validate:"required"`
	Description  string                 `json:"description,omitempty"`
	Prompt       string                 `json:"prompt" validate:"required"`
	SystemPrompt string                 `json:"system_prompt,omitempty"`
	Parameters   map[string]interface{} `json:"parameters,omitempty"`
	Tags         []string               `json:"tags,omitempty"`
}

// HasTag reports whether c carries tag, ignoring case.
func (c *PromptConfig) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}
