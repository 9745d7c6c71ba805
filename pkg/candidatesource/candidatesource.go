// Package candidatesource defines the opaque collaborator contract an
// embedder can plug into CandidateAssembler/InputSession in place of (or
// alongside) the built-in dictionary+frequency lookup path.
package candidatesource

import "github.com/bastiangx/imecore/pkg/frequency"

// Source is queried for candidates already sorted by its own internal
// ranking; the core never introspects it. A nil Source means the
// assembler relies solely on DictionaryRegistry and FrequencyStore.
//
// Implementations are expected to be deterministic for a given pinyin and
// stable across a session; they may carry their own internal state (a
// rime-like segmentation engine, for example) whose lifecycle belongs to
// the embedder, not the core.
type Source interface {
	Query(pinyin string, limit int) []frequency.CandidateWord
}
