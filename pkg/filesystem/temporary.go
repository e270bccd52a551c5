package filesystem

const (
	// TemporaryNamePrefix is the file name prefix used for all temporary files
	// and directories created by the daemon. Nothing in this repository filters
	// on this prefix, so such files are seen by filesystem watching like any
	// other file. It may be suffixed with additional elements if desired.
	TemporaryNamePrefix = ".forge-temporary-"
)
