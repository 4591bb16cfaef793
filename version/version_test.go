package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashIsPure(t *testing.T) {
	temp := 0.7
	p1 := Properties{Model: "gpt-4o", Temperature: &temp, Instructions: "Hello"}
	p2 := Properties{Instructions: "Hello", Model: "gpt-4o", Temperature: &temp}

	h1, err := Hash(p1)
	require.NoError(t, err)
	h2, err := Hash(p2)
	require.NoError(t, err)

	assert.Equal(t, h1, h2, "field order must not affect the hash")
}

func TestHashChangesWithProperties(t *testing.T) {
	h1, err := Hash(Properties{Model: "gpt-4o"})
	require.NoError(t, err)
	h2, err := Hash(Properties{Model: "gpt-4o-mini"})
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
}

func TestSanitizeDerivesEnabledToolsFromInstructions(t *testing.T) {
	out, err := Sanitize(Properties{
		Model:        "gpt-4o",
		Instructions: "Use @search-google and @browser to answer.",
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"@search-google", "@browser"}, out.EnabledTools)
}

func TestSanitizeRejectsUnknownProvider(t *testing.T) {
	_, err := Sanitize(Properties{Model: "gpt-4o", Provider: "not-a-provider"})
	assert.Error(t, err)
}

func TestSanitizeRejectsOutOfRangeTemperature(t *testing.T) {
	temp := 5.0
	_, err := Sanitize(Properties{Model: "gpt-4o", Temperature: &temp})
	assert.Error(t, err)
}

func TestParseModelString(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want ModelReference
	}{
		{"bare model", "gpt-4o", ModelReference{Model: "gpt-4o"}},
		{"agent and model", "my-agent/gpt-4o", ModelReference{AgentID: "my-agent", Model: "gpt-4o"}},
		{"schema and environment", "#3/production", ModelReference{SchemaID: 3, Environment: "production"}},
		{"agent schema environment", "my-agent/#3/production", ModelReference{AgentID: "my-agent", SchemaID: 3, Environment: "production"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseModelString(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type fakeStore struct {
	versions    map[string]*Version
	deployments map[string]*Version
}

func newFakeStore() *fakeStore {
	return &fakeStore{versions: map[string]*Version{}, deployments: map[string]*Version{}}
}

func (f *fakeStore) GetVersion(agentUID int64, schemaID int, hash string) (*Version, error) {
	if v, ok := f.versions[hash]; ok {
		return v, nil
	}
	return nil, assertNotFound
}

func (f *fakeStore) GetVersionBySemver(agentUID int64, schemaID int, sv Semver) (*Version, error) {
	for _, v := range f.versions {
		if v.Semver != nil && *v.Semver == sv {
			return v, nil
		}
	}
	return nil, assertNotFound
}

func (f *fakeStore) GetDeployment(agentUID int64, schemaID int, environment string) (*Version, error) {
	if v, ok := f.deployments[environment]; ok {
		return v, nil
	}
	return nil, assertNotFound
}

func (f *fakeStore) PutVersion(v *Version) error {
	f.versions[v.ID] = v
	return nil
}

var assertNotFound = errNotFound{}

type errNotFound struct{}

func (errNotFound) Error() string { return "not found" }

func TestResolveEnvironmentDeployment(t *testing.T) {
	store := newFakeStore()
	v := &Version{ID: "abc123", Properties: Properties{Model: "gpt-4o"}}
	store.deployments["production"] = v

	r := NewResolver(store, nil)
	resolved, err := r.Resolve(1, 1, Reference{Environment: "production"})
	require.NoError(t, err)
	assert.Equal(t, "abc123", resolved.VersionID)
	assert.Equal(t, "production", resolved.Environment)
}

func TestResolveMissingDeployment(t *testing.T) {
	store := newFakeStore()
	r := NewResolver(store, nil)
	_, err := r.Resolve(1, 1, Reference{Environment: "staging"})
	assert.Error(t, err)
}
