// Package models defines the domain entities for the setlist assembly pipeline.
//
// The package contains three categories of types:
//
// 1. Request structures produced by parsing:
//   - [Intent] : Structured playlist request parsed from free text
//   - [FestivalRef] : Normalized festival/event reference with query variants
//
// 2. Planning structures:
//   - [ExecutionPlan] : Bounded, ordered sequence of retrieval operations
//   - [ToolCall] : One step of an ExecutionPlan over the closed [Tool] vocabulary
//
// 3. Collection and assembly structures:
//   - [CandidateTrack] : A track produced by a collection step, not yet unique or diverse
//   - [RelaxationStep] : One logged constraint loosening taken under scarce supply
//   - [AssembledPlaylist] : The deduplicated, diversity-balanced, size-exact result
//   - [Blacklist] : Session-scoped set of permanently excluded track IDs
package models
