// Package device implements the canonical device record store for
// VentSync Core.
//
// # Overview
//
// Every physical device (vent or temperature sensor) has exactly one
// Record, keyed by its externally assigned device ID. The Store owns the
// live in-memory copy of every record and is the single writer path for
// all mutations: registration merges, angle commands, temperature
// readings, and arrangement placement updates.
//
// # Consistency model
//
// Mutations for one device ID are serialised behind a per-device lock,
// held across the repository call, so a read-modify-write can never race
// another writer for the same device. Distinct device IDs proceed fully
// in parallel.
//
// The in-memory record is the source of truth for live reads and
// broadcasts; the persisted copy is eventually consistent with it. A
// failed repository write is logged and the in-memory update is kept.
//
// # Record shape
//
// Records carry shared display fields plus a typed vent/sensor union
// (VentState or SensorState) instead of a free-form detail blob, so merge
// logic is field-by-field and cannot silently drop fields.
package device
