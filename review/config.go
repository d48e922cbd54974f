package review

import (
	"reflect"

	"github.com/c360studio/semstreams/component"
)

// configSchema is generated once at package init so operators get the
// same schema-driven configuration surface for the review core that
// semstreams components expose for themselves.
var configSchema = component.GenerateConfigSchema(reflect.TypeOf(Config{}))

// Config carries the review core's tunables: retry caps and the generic
// skill set used when no domain plugin is registered for a task.
type Config struct {
	// ClauseRetryLimit bounds how many times validate_strategy may route
	// back to clause_analyze before the clause is marked best-effort
	// exhausted.
	ClauseRetryLimit int `json:"clause_retry_limit" schema:"type:int,description:Maximum clause_analyze retries before best-effort exhaustion,category:basic,default:2,min:0,max:10"`

	// RejectRetryLimit bounds how many times a rejected diff may trigger
	// regeneration before it is recorded rejected-final.
	RejectRetryLimit int `json:"reject_retry_limit" schema:"type:int,description:Maximum diff regenerations after a reject decision,category:basic,default:1,min:0,max:10"`

	// GenericSkillIDs is the skill sequence applied to every clause when a
	// task has no domain plugin and the review falls back to the generic
	// whole-document pass.
	GenericSkillIDs []string `json:"generic_skill_ids" schema:"type:string,description:Skill sequence applied when a task has no domain plugin,category:advanced"`

	// ValidateStrategySkillID names the skill the validate_strategy node
	// calls to decide pass/retry/skip_clause.
	ValidateStrategySkillID string `json:"validate_strategy_skill_id" schema:"type:string,description:Skill id validate_strategy dispatches to,category:basic,default:validate_strategy"`

	// GenerateDiffsSkillID names the skill the generate_diffs node calls
	// to turn findings into proposed edits.
	GenerateDiffsSkillID string `json:"generate_diffs_skill_id" schema:"type:string,description:Skill id generate_diffs dispatches to,category:basic,default:generate_diffs"`
}

// ConfigSchema returns the schema generated for Config.
func ConfigSchema() component.ConfigSchema {
	return configSchema
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		ClauseRetryLimit:        2,
		RejectRetryLimit:        1,
		GenericSkillIDs:         []string{"get_clause_context", "semantic_search"},
		ValidateStrategySkillID: "validate_strategy",
		GenerateDiffsSkillID:    "generate_diffs",
	}
}
