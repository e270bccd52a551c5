package daemon

const (
	// Host is the hostname on which the daemon listens.
	Host = "localhost"
	// DefaultPort is the default TCP port for the daemon. Nothing in this
	// repository opens a TCP listener, so the constant is not used by the
	// daemon itself.
	DefaultPort = 31116
)
