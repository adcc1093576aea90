// Package domain defines the core business entities of the plan
// generation system: learning plans and their generated structure,
// generation attempts, and durable queue jobs. Entities validate
// themselves and carry no persistence or transport concerns.
package domain
