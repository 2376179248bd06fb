// Package agent contains the composable node implementations for building
// execution trees:
//
//  1. Hierarchy plumbing shared by all nodes (BaseAgent)
//  2. Deterministic coordination patterns (SequentialAgent, ParallelAgent,
//     LoopAgent)
//  3. The model-backed leaf with tool calling and transfer (LLMAgent)
//
// Design principles:
//   - The tree is assembled once via SetSubAgents and read-only afterwards,
//     so one tree serves every concurrent invocation
//   - An agent's Run receives a *core.InvocationContext and communicates
//     exclusively by emitting events through it
//   - Composite agents coordinate child Runs; they never interpret model
//     output themselves
//
// Persistence, model adapters and the tool registry live in their own
// packages to avoid cyclic dependencies.
package agent
