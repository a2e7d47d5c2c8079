package peergroup

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sort"
)

// Registry is a sealed bidirectional mapping between real entity ids and
// their anonymized counterparts, built once per batch. Group objects only
// ever carry anonymized ids; resolving back to a real id goes through this
// registry alone, which the host keeps access-controlled.
type Registry struct {
	forward map[string]string // entityID -> anonymizedID
	reverse map[string]string // anonymizedID -> entityID
}

// NewRegistry derives anonymized ids for all given entity ids using
// HMAC-SHA256 with the batch salt, truncated to 16 hex characters.
// Collisions within a batch fall back to the full digest.
func NewRegistry(salt string, entityIDs []string) *Registry {
	r := &Registry{
		forward: make(map[string]string, len(entityIDs)),
		reverse: make(map[string]string, len(entityIDs)),
	}

	for _, id := range entityIDs {
		mac := hmac.New(sha256.New, []byte(salt))
		mac.Write([]byte(id))
		digest := hex.EncodeToString(mac.Sum(nil))

		anon := digest[:16]
		if existing, taken := r.reverse[anon]; taken && existing != id {
			anon = digest
		}

		r.forward[id] = anon
		r.reverse[anon] = id
	}

	return r
}

// Anonymize returns the anonymized id for an entity, and whether it is known.
func (r *Registry) Anonymize(entityID string) (string, bool) {
	anon, ok := r.forward[entityID]
	return anon, ok
}

// Resolve maps an anonymized id back to the real entity id.
func (r *Registry) Resolve(anonymizedID string) (string, bool) {
	id, ok := r.reverse[anonymizedID]
	return id, ok
}

// AnonymizedIDs returns all anonymized ids in the registry, sorted.
func (r *Registry) AnonymizedIDs() []string {
	ids := make([]string, 0, len(r.reverse))
	for id := range r.reverse {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of registered entities.
func (r *Registry) Len() int {
	return len(r.forward)
}
