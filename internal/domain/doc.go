// Package domain defines the core types shared by the kitsync jobs.
//
// Types in this package are pure value objects with no behavior beyond small
// validation and classification helpers. They are the shared language between
// the Notion and Kit clients, the renderer, and the batch jobs.
//
// Rules for this package:
//   - No imports from other internal/ packages
//   - No *sql.DB, no http.Request, no context.Context in struct fields
//   - JSON tags are allowed (they're metadata, not behavior)
//   - Constants and enums belong here
package domain
