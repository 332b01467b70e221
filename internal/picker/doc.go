// Package picker defines the record that flows through the media picker
// pipeline (Item), the storage location selector, per-stage results and the
// failure taxonomy.
//
// Stages never panic or hide failures in side effects: each returns a
// Result whose Status says whether the stage did work, had nothing to do,
// failed without consequence for the item (StatusDegraded) or ended it
// (StatusFatal). Errors inside a Result wrap one of the Err* markers.
package picker
