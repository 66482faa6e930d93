// Package chat implements the multi-turn ChatML conversation loop —
// prompt assembly, incremental decode, sampling, think-segment KV
// elision, and tool-call leak suppression — against an injected
// inference engine. Grounded directly on
// original_source/fuxi-quant-agent/src/agent.rs's Agent::chat /
// chat_with_tools / chat_internal, translated from llama.cpp's Rust
// bindings into a small Go interface so the loop itself can be unit
// tested without a real model.
package chat

// Token is an opaque model vocabulary token ID.
type Token int32

// Engine is the out-of-scope inference primitive the spec names in §1:
// tokenize, detokenize, decode, sample, clear_kv, shift_kv, is_eos.
// A real implementation would bind to a GGUF/llama.cpp-style runtime;
// no such binding exists anywhere in the retrieved corpus, so this is
// the one deliberately stdlib-only seam — SPEC_FULL.md names it as an
// injected dependency, not a component to implement.
type Engine interface {
	// Tokenize encodes text into tokens. addBOS controls whether a
	// beginning-of-sequence token is prepended (only on a session's
	// very first turn, matching is_first_turn/AddBos::Always).
	Tokenize(text string, addBOS bool) ([]Token, error)

	// Detokenize renders a single token back into its text piece.
	Detokenize(t Token) (string, error)

	// Decode runs a forward pass over tokens positioned starting at
	// startPos, appending them to the running KV cache.
	Decode(tokens []Token, startPos int) error

	// Sample draws the next token given everything decoded so far,
	// using the supplied sampler parameters.
	Sample(params SamplerParams) (Token, error)

	// IsEOS reports whether t ends generation.
	IsEOS(t Token) bool

	// ClearKV elides the half-open token range [from, to) from the KV
	// cache for sequence 0.
	ClearKV(from, to int) error

	// ShiftKV shifts every cached position at or after from left by
	// delta (delta is negative to compact gaps left by ClearKV).
	ShiftKV(from int, delta int) error
}

// SamplerParams mirrors agent.rs's LlamaSampler::chain_simple chain:
// top_k -> top_p -> min_p -> temp -> penalties -> dist.
type SamplerParams struct {
	TopK             int
	TopP             float64
	MinP             float64
	Temperature      float64
	PresencePenalty  float64
	Seed             uint32
}

// ThinkingSamplerParams returns the sampler settings used while
// enable_thinking is true.
func ThinkingSamplerParams(seed uint32) SamplerParams {
	return SamplerParams{TopK: 20, TopP: 0.95, MinP: 0, Temperature: 0.6, PresencePenalty: 0.0, Seed: seed}
}

// NonThinkingSamplerParams returns the sampler settings used when
// thinking mode is disabled.
func NonThinkingSamplerParams(seed uint32) SamplerParams {
	return SamplerParams{TopK: 20, TopP: 0.8, MinP: 0, Temperature: 0.7, PresencePenalty: 1.5, Seed: seed}
}
