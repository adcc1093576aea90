// Package events provides types and interfaces for plan lifecycle
// notifications.
//
// Services emit events when a plan's generation state changes without
// knowing which handlers will process them, which keeps the service
// layer decoupled from delivery concerns like websockets or email.
//
// The primary components are:
// - PlanEvent: Represents a change in a plan's generation lifecycle
// - EventHandler: Interface for components that can handle events
// - EventEmitter: Interface for components that can emit events
package events
