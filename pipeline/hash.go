package pipeline

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/workflowai/gateway/version"
)

// InputHash computes the stable digest of a canonical input record (§3
// invariant: "task_input_hash is a stable digest of the validated,
// file-offloaded input"). canonicalInput must already have files replaced by
// their positional `$file_ref` placeholders (or, after persistence, by their
// {url, storage_url, content_type} form) — never by raw base64 bytes — so the
// hash never changes when the same file is re-uploaded.
func InputHash(canonicalInput interface{}) (string, error) {
	raw, err := version.CanonicalJSON(canonicalInput)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
