// Package version resolves a VersionReference into a concrete, sanitized set
// of run properties (C1). It owns the version hash, which is the pure
// function every other component relies on for cache keys and equality.
package version

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/workflowai/gateway/core"
)

// Properties is an immutable bundle of run properties. Field order here has
// no bearing on the hash: Hash always serializes through a sorted-key
// canonical encoder.
type Properties struct {
	Provider         string            `json:"provider,omitempty"`
	Model            string            `json:"model"`
	Temperature      *float64          `json:"temperature,omitempty"`
	TopP             *float64          `json:"top_p,omitempty"`
	PresencePenalty  *float64          `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64          `json:"frequency_penalty,omitempty"`
	MaxTokens        *int              `json:"max_tokens,omitempty"`
	ToolChoice       string            `json:"tool_choice,omitempty"`
	EnabledTools     []string          `json:"enabled_tools,omitempty"`
	ReasoningEffort  string            `json:"reasoning_effort,omitempty"`
	Instructions     string            `json:"instructions,omitempty"`
	Messages         []json.RawMessage `json:"messages,omitempty"`
	OutputSchemaRef  string            `json:"output_schema_ref,omitempty"`
	StructuredOutput bool              `json:"structured_output,omitempty"`
}

// Semver names a saved version within a schema. Major bumps on prompt-level
// changes (messages, instructions, output schema); minor bumps on tuning.
type Semver struct {
	Major int
	Minor int
}

func (s Semver) String() string { return fmt.Sprintf("%d.%d", s.Major, s.Minor) }

// Version is a stored, hash-identified property bundle, optionally named.
type Version struct {
	ID         string // sha256 hex digest of normalized Properties
	AgentUID   int64
	SchemaID   int
	Properties Properties
	Semver     *Semver // nil until saved
	Saved      bool
}

// Reference is one of the ways a caller may point at a version: inline
// properties, an environment deployment, a semver, or a raw hash.
type Reference struct {
	Inline      *Properties
	Environment string // "dev" | "staging" | "production"
	Semver      *Semver
	Hash        string
}

// Store abstracts version/deployment persistence so the resolver never
// depends on a concrete storage engine (in-memory for tests, Postgres-backed
// store.Store in production).
type Store interface {
	GetVersion(agentUID int64, schemaID int, hash string) (*Version, error)
	GetVersionBySemver(agentUID int64, schemaID int, sv Semver) (*Version, error)
	GetDeployment(agentUID int64, schemaID int, environment string) (*Version, error)
	PutVersion(v *Version) error
}

var environments = map[string]bool{"dev": true, "staging": true, "production": true}

var allowedModels = map[string]bool{}
var allowedProviders = map[string]bool{
	"openai": true, "anthropic": true, "bedrock": true, "gemini": true,
	"mistral": true, "xai": true, "cerebras": true, "mock": true,
}

// RegisterModel makes a model id known to sanitization. runner.RegisterModelRoute
// calls this for every routed model, so the resolver's allow-list matches
// the set of models the runner can actually dispatch to.
func RegisterModel(modelID string) {
	allowedModels[modelID] = true
}

// Resolver resolves a Reference into sanitized Properties.
type Resolver struct {
	store  Store
	logger core.Logger
}

// NewResolver builds a Resolver backed by the given Store.
func NewResolver(store Store, logger core.Logger) *Resolver {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Resolver{store: store, logger: logger}
}

// Resolved is the outcome of resolving a Reference.
type Resolved struct {
	Properties       Properties
	VersionID        string
	Environment      string
	IsDifferentVersion bool // sanitization changed the hash from the caller's inline input
}

// Resolve turns a Reference into sanitized Properties for (agentUID, schemaID).
func (r *Resolver) Resolve(agentUID int64, schemaID int, ref Reference) (*Resolved, error) {
	switch {
	case ref.Inline != nil:
		original, err := Hash(*ref.Inline)
		if err != nil {
			return nil, err
		}
		sanitized, err := Sanitize(*ref.Inline)
		if err != nil {
			return nil, err
		}
		sanitizedHash, err := Hash(sanitized)
		if err != nil {
			return nil, err
		}
		return &Resolved{
			Properties:         sanitized,
			VersionID:          sanitizedHash,
			IsDifferentVersion: sanitizedHash != original,
		}, nil

	case ref.Environment != "":
		if !environments[ref.Environment] {
			return nil, fmt.Errorf("%w: unknown environment %q", core.ErrInvalidConfiguration, ref.Environment)
		}
		v, err := r.store.GetDeployment(agentUID, schemaID, ref.Environment)
		if err != nil {
			return nil, fmt.Errorf("%w: environment %q", core.ErrDeploymentNotFound, ref.Environment)
		}
		return &Resolved{Properties: v.Properties, VersionID: v.ID, Environment: ref.Environment}, nil

	case ref.Semver != nil:
		v, err := r.store.GetVersionBySemver(agentUID, schemaID, *ref.Semver)
		if err != nil {
			return nil, fmt.Errorf("%w: version %s", core.ErrVersionNotFound, ref.Semver)
		}
		return &Resolved{Properties: v.Properties, VersionID: v.ID}, nil

	case ref.Hash != "":
		v, err := r.store.GetVersion(agentUID, schemaID, ref.Hash)
		if err != nil {
			return nil, fmt.Errorf("%w: hash %s", core.ErrVersionNotFound, ref.Hash)
		}
		return &Resolved{Properties: v.Properties, VersionID: v.ID}, nil
	}

	return nil, fmt.Errorf("%w: empty version reference", core.ErrInvalidConfiguration)
}

var toolMentionPattern = regexp.MustCompile(`@[a-zA-Z0-9_-]+`)

// Sanitize enforces known provider/model strings, rejects out-of-range
// numeric values, and sets EnabledTools to the sorted union of any
// explicitly listed tools and the @-mentions in Instructions.
func Sanitize(p Properties) (Properties, error) {
	out := p

	if out.Provider != "" && !allowedProviders[out.Provider] {
		return Properties{}, fmt.Errorf("%w: unknown provider %q", core.ErrInvalidConfiguration, out.Provider)
	}
	if out.Model == "" {
		return Properties{}, fmt.Errorf("%w: model is required", core.ErrInvalidConfiguration)
	}
	if len(allowedModels) > 0 && !allowedModels[out.Model] {
		return Properties{}, fmt.Errorf("%w: unknown model %q", core.ErrInvalidConfiguration, out.Model)
	}

	if out.Temperature != nil && (*out.Temperature < 0 || *out.Temperature > 2) {
		return Properties{}, fmt.Errorf("%w: temperature out of range [0,2]", core.ErrInvalidConfiguration)
	}
	if out.TopP != nil && (*out.TopP < 0 || *out.TopP > 1) {
		return Properties{}, fmt.Errorf("%w: top_p out of range [0,1]", core.ErrInvalidConfiguration)
	}
	if out.PresencePenalty != nil && (*out.PresencePenalty < -2 || *out.PresencePenalty > 2) {
		return Properties{}, fmt.Errorf("%w: presence_penalty out of range [-2,2]", core.ErrInvalidConfiguration)
	}
	if out.FrequencyPenalty != nil && (*out.FrequencyPenalty < -2 || *out.FrequencyPenalty > 2) {
		return Properties{}, fmt.Errorf("%w: frequency_penalty out of range [-2,2]", core.ErrInvalidConfiguration)
	}

	mentioned := map[string]bool{}
	for _, t := range out.EnabledTools {
		mentioned[t] = true
	}
	for _, m := range toolMentionPattern.FindAllString(out.Instructions, -1) {
		mentioned[m] = true
	}
	if len(mentioned) > 0 {
		merged := make([]string, 0, len(mentioned))
		for t := range mentioned {
			merged = append(merged, t)
		}
		sort.Strings(merged)
		out.EnabledTools = merged
	}

	return out, nil
}

// Hash computes the deterministic version id: sha256 over a canonical,
// sorted-key JSON encoding of the normalized properties. Identical
// normalized properties always produce identical hashes (§8 property 3).
func Hash(p Properties) (string, error) {
	canonical, err := canonicalJSON(p)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// CanonicalJSON re-marshals v through a generic map with sorted object keys,
// producing the same stable byte representation Hash uses. The input
// pipeline (C2) reuses this for task_input_hash so both hashes are directly
// comparable during debugging.
func CanonicalJSON(v interface{}) ([]byte, error) {
	return canonicalJSON(v)
}

// canonicalJSON re-marshals through a generic map so object keys are sorted,
// making the byte representation stable regardless of struct field order.
// This is the same canonical-serializer shape the input pipeline (C2) uses
// for its task_input_hash, so both hashes are comparable in debugging tools.
func canonicalJSON(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	var b strings.Builder
	if err := encodeCanonical(&b, generic); err != nil {
		return nil, err
	}
	return []byte(b.String()), nil
}

func encodeCanonical(b *strings.Builder, v interface{}) error {
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			kb, _ := json.Marshal(k)
			b.Write(kb)
			b.WriteByte(':')
			if err := encodeCanonical(b, val[k]); err != nil {
				return err
			}
		}
		b.WriteByte('}')
	case []interface{}:
		b.WriteByte('[')
		for i, e := range val {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := encodeCanonical(b, e); err != nil {
				return err
			}
		}
		b.WriteByte(']')
	default:
		eb, err := json.Marshal(val)
		if err != nil {
			return err
		}
		b.Write(eb)
	}
	return nil
}

// ModelReference is a parsed `model` string from the OpenAI-compatible
// surface (C9), e.g. "gpt-4o", "my-agent/gpt-4o", "my-agent/#3/production",
// "#3/production".
type ModelReference struct {
	AgentID     string
	SchemaID    int // 0 if absent
	Model       string
	Environment string
}

var schemaEnvPattern = regexp.MustCompile(`^#(\d+)/(dev|staging|production)$`)

// ParseModelString implements the §6 model-string grammar.
func ParseModelString(s string) (ModelReference, error) {
	if s == "" {
		return ModelReference{}, fmt.Errorf("%w: empty model string", core.ErrInvalidConfiguration)
	}

	if m := schemaEnvPattern.FindStringSubmatch(s); m != nil {
		var schemaID int
		fmt.Sscanf(m[1], "%d", &schemaID)
		return ModelReference{SchemaID: schemaID, Environment: m[2]}, nil
	}

	if idx := strings.Index(s, "/"); idx >= 0 {
		agentPart, rest := s[:idx], s[idx+1:]
		if m := schemaEnvPattern.FindStringSubmatch(rest); m != nil {
			var schemaID int
			fmt.Sscanf(m[1], "%d", &schemaID)
			return ModelReference{AgentID: agentPart, SchemaID: schemaID, Environment: m[2]}, nil
		}
		return ModelReference{AgentID: agentPart, Model: rest}, nil
	}

	return ModelReference{Model: s}, nil
}
