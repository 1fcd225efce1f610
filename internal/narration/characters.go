package narration

import "time"

// Character is one registry entry.
type Character struct {
	Role     string `json:"role"`
	Descript string `json:"descript"`
	ID       int    `json:"id"`
}

// Registry is the ordered character list of a work.
type Registry []Character

// Has reports whether role is registered.
func (r Registry) Has(role string) bool {
	for _, c := range r {
		if c.Role == role {
			return true
		}
	}
	return false
}

// NextID returns one more than the largest id in the registry.
func (r Registry) NextID() int {
	maxID := 0
	for _, c := range r {
		if c.ID > maxID {
			maxID = c.ID
		}
	}
	return maxID + 1
}

// Missing returns the roles not yet registered, preserving input order.
func (r Registry) Missing(roles []string) []string {
	var missing []string
	for _, role := range roles {
		if !r.Has(role) {
			missing = append(missing, role)
		}
	}
	return missing
}

// Append assigns consecutive ids starting at NextID to profiles and returns
// the extended registry. Profiles whose role is already present are skipped.
func (r Registry) Append(profiles []Profile) (Registry, []Character) {
	next := r.NextID()
	out := append(Registry{}, r...)
	added := make([]Character, 0, len(profiles))
	for _, p := range profiles {
		if out.Has(p.Role) {
			continue
		}
		c := Character{Role: p.Role, Descript: p.Descript, ID: next}
		next++
		out = append(out, c)
		added = append(added, c)
	}
	return out, added
}

// Profile is a generated character description before an id is assigned.
type Profile struct {
	Role     string `json:"role"`
	Descript string `json:"descript"`
}

// Bindings maps role to voice sample location.
type Bindings map[string]string

// VoiceRecord describes one sample in the voice library.
type VoiceRecord struct {
	Prompt   string `json:"prompt"`
	RoleHint string `json:"role_hint"`
}

// VoiceMetadata is the voice library index keyed by sample file name.
type VoiceMetadata map[string]VoiceRecord

// Manifest records what a chapter audio artifact was built from.
type Manifest struct {
	Digest     string    `json:"digest"`
	Segments   int       `json:"segments"`
	SilenceMS  int       `json:"silence_ms"`
	SampleRate int       `json:"sample_rate"`
	Channels   int       `json:"channels"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}
