// Package grid provides the entity model for editable tables.
//
// This package contains type definitions only. All other internal packages
// import grid; grid imports nothing internal. This keeps the entity model
// the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Identity is the opaque ID string, never structural or positional
//   - Ordering is by Position; equal positions keep stable source order
//   - Cell values are a closed set (sealed CellValue interface)
//   - All JSON tags use snake_case
package grid
