// Package models defines domain entities and persistence interfaces for the bookclean review client.
//
// The package contains two categories of types:
//
// 1. Data Transfer Objects (DTOs): structs decoded from the cleaning backend
//   - [Session] : One resumable processing job for one uploaded book
//   - [Chapter] : An ordered group of changes with an optional content [Rating]
//   - [Change] : One proposed edit with original/proposed text and a review [ChangeStatus]
//   - [ChangeID] : Composite (chapter, sequence) ordering key, also accepted in a legacy integer form
//
// 2. Persistent Entities: database-backed local records
//   - [SessionRecord] : Last known state of a session this client has touched
//   - [Decision] : A confirmed accept/reject with the final proposed text
//
// Persistent entities implement the [Model] interface providing ID generation, timestamps and validation.
// The [Repository] interface defines standard CRUD operations for database access.
package models
