// Package event defines the progress events emitted by the copy engine and
// the store verifier.
package event

import "time"

// Type identifies the kind of event.
type Type int

const (
	SourceStarted Type = iota + 1
	SourceCompleted
	DirCreated
	DirMerged
	FileLinked
	FileUpToDate
	SymlinkCreated
	SymlinkUpToDate
	Removed
	BackedUp
	StoreAdded
	StoreHit
	NodeSkipped
	NodeFailed
	VerifyStarted
	VerifyOK
	VerifyFailed
)

var typeNames = [...]string{
	SourceStarted:   "SourceStarted",
	SourceCompleted: "SourceCompleted",
	DirCreated:      "DirCreated",
	DirMerged:       "DirMerged",
	FileLinked:      "FileLinked",
	FileUpToDate:    "FileUpToDate",
	SymlinkCreated:  "SymlinkCreated",
	SymlinkUpToDate: "SymlinkUpToDate",
	Removed:         "Removed",
	BackedUp:        "BackedUp",
	StoreAdded:      "StoreAdded",
	StoreHit:        "StoreHit",
	NodeSkipped:     "NodeSkipped",
	NodeFailed:      "NodeFailed",
	VerifyStarted:   "VerifyStarted",
	VerifyOK:        "VerifyOK",
	VerifyFailed:    "VerifyFailed",
}

func (t Type) String() string {
	if t > 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "Unknown"
}

// Event represents a single progress event.
type Event struct {
	Type      Type
	Timestamp time.Time
	Path      string // source path, or store entry for Verify*
	Dst       string // destination path; backup path for BackedUp
	Hash      string // content hash for file and store events
	Method    string // how file content was placed (reflink, copy_file_range, ...)
	Size      int64
	Total     int64 // entries to check (VerifyStarted)
	Error     error
}
