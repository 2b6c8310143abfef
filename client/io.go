package client

// File descriptors of the pre-image oracle and hint channels, pre-opened by
// the host before the client starts. 0, 1 and 2 remain stdin/stdout/stderr.
const (
	HClientRFd = 3
	HClientWFd = 4
	PClientRFd = 5
	PClientWFd = 6
)
