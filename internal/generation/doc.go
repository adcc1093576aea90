// Package generation defines the provider-neutral contract for plan
// generation. This interface serves as a boundary between the application
// core and external AI/LLM services, following the hexagonal architecture
// pattern: the orchestrator consumes a Stream of structured chunks under a
// deadline, and providers report failures as this package's typed errors.
package generation
