package ir

// Version constants for the storage layout and router.
const (
	// LayoutVersion is the version of the slot layout used by the routing table
	// and the cut history. Bumped whenever key or value encodings change.
	LayoutVersion = "1"

	// RouterVersion is the diamond router version.
	RouterVersion = "0.1.0"
)
