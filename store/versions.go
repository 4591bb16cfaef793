package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/workflowai/gateway/core"
	"github.com/workflowai/gateway/version"
)

// VersionStore adapts Store's Postgres pool to version.Store, the interface
// the version resolver (C1) depends on. It is a thin struct wrapping Store
// rather than Store itself implementing version.Store directly, keeping the
// run-persistence and version-resolution read paths separately named.
type VersionStore struct {
	store *Store
}

// Versions returns a version.Store backed by s.
func (s *Store) Versions() *VersionStore {
	return &VersionStore{store: s}
}

func (vs *VersionStore) GetVersion(agentUID int64, schemaID int, hash string) (*version.Version, error) {
	return vs.queryOne(`
		SELECT id, agent_uid, schema_id, properties, semver_major, semver_minor, saved
		FROM versions WHERE agent_uid = $1 AND schema_id = $2 AND id = $3
	`, agentUID, schemaID, hash)
}

func (vs *VersionStore) GetVersionBySemver(agentUID int64, schemaID int, sv version.Semver) (*version.Version, error) {
	return vs.queryOne(`
		SELECT id, agent_uid, schema_id, properties, semver_major, semver_minor, saved
		FROM versions WHERE agent_uid = $1 AND schema_id = $2 AND semver_major = $3 AND semver_minor = $4 AND saved
	`, agentUID, schemaID, sv.Major, sv.Minor)
}

func (vs *VersionStore) GetDeployment(agentUID int64, schemaID int, environment string) (*version.Version, error) {
	return vs.queryOne(`
		SELECT v.id, v.agent_uid, v.schema_id, v.properties, v.semver_major, v.semver_minor, v.saved
		FROM versions v
		JOIN deployments d ON d.agent_uid = v.agent_uid AND d.schema_id = v.schema_id AND d.version_id = v.id
		WHERE d.agent_uid = $1 AND d.schema_id = $2 AND d.environment = $3
	`, agentUID, schemaID, environment)
}

func (vs *VersionStore) PutVersion(v *version.Version) error {
	props, err := json.Marshal(v.Properties)
	if err != nil {
		return fmt.Errorf("store: marshal properties: %w", err)
	}

	var major, minor *int
	if v.Semver != nil {
		major, minor = &v.Semver.Major, &v.Semver.Minor
	}

	_, err = vs.store.pool.Exec(context.Background(), `
		INSERT INTO versions (id, agent_uid, schema_id, properties, semver_major, semver_minor, saved)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (agent_uid, schema_id, id) DO UPDATE
		SET semver_major = EXCLUDED.semver_major, semver_minor = EXCLUDED.semver_minor, saved = EXCLUDED.saved
	`, v.ID, v.AgentUID, v.SchemaID, props, major, minor, v.Saved)
	if err != nil {
		return fmt.Errorf("store: put version: %w", err)
	}
	return nil
}

// Deploy atomically replaces (agentUID, schemaID, environment)'s mapping to
// versionID (spec §3 "Re-deploying replaces the mapping atomically"). It is
// not part of the version.Store interface the resolver depends on, since
// only the native deploy endpoint (C9) needs it.
func (vs *VersionStore) Deploy(ctx context.Context, agentUID int64, schemaID int, environment, versionID string) error {
	_, err := vs.store.pool.Exec(ctx, `
		INSERT INTO deployments (agent_uid, schema_id, environment, version_id, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (agent_uid, schema_id, environment)
		DO UPDATE SET version_id = EXCLUDED.version_id, updated_at = now()
	`, agentUID, schemaID, environment, versionID)
	if err != nil {
		return fmt.Errorf("store: deploy: %w", err)
	}
	return nil
}

// ListVersions returns every version for (agentUID, schemaID), ordered by
// semver for the caller to group by major (spec §6 "List versions (grouped
// by major)").
func (vs *VersionStore) ListVersions(ctx context.Context, agentUID int64, schemaID int) ([]*version.Version, error) {
	rows, err := vs.store.pool.Query(ctx, `
		SELECT id, agent_uid, schema_id, properties, semver_major, semver_minor, saved
		FROM versions WHERE agent_uid = $1 AND schema_id = $2
		ORDER BY semver_major NULLS LAST, semver_minor NULLS LAST, created_at
	`, agentUID, schemaID)
	if err != nil {
		return nil, fmt.Errorf("store: list versions: %w", err)
	}
	defer rows.Close()

	var out []*version.Version
	for rows.Next() {
		var v version.Version
		var propsJSON []byte
		var major, minor *int
		if err := rows.Scan(&v.ID, &v.AgentUID, &v.SchemaID, &propsJSON, &major, &minor, &v.Saved); err != nil {
			return nil, fmt.Errorf("store: scan version: %w", err)
		}
		if err := json.Unmarshal(propsJSON, &v.Properties); err != nil {
			return nil, fmt.Errorf("store: unmarshal properties: %w", err)
		}
		if major != nil && minor != nil {
			v.Semver = &version.Semver{Major: *major, Minor: *minor}
		}
		out = append(out, &v)
	}
	return out, rows.Err()
}

func (vs *VersionStore) queryOne(query string, args ...interface{}) (*version.Version, error) {
	row := vs.store.pool.QueryRow(context.Background(), query, args...)

	var (
		v             version.Version
		propsJSON     []byte
		major, minor  *int
	)
	if err := row.Scan(&v.ID, &v.AgentUID, &v.SchemaID, &propsJSON, &major, &minor, &v.Saved); err != nil {
		if err == pgx.ErrNoRows {
			return nil, core.ErrVersionNotFound
		}
		return nil, fmt.Errorf("store: query version: %w", err)
	}
	if err := json.Unmarshal(propsJSON, &v.Properties); err != nil {
		return nil, fmt.Errorf("store: unmarshal properties: %w", err)
	}
	if major != nil && minor != nil {
		v.Semver = &version.Semver{Major: *major, Minor: *minor}
	}
	return &v, nil
}
