// Package gemini implements the generation.PlanGenerator interface using
// Google's Gemini API. It owns prompt templating, input clipping and
// normalization, the streaming exchange with the model, and the mapping
// of provider faults onto the generation package's typed errors.
package gemini
