//go:build !debug

package hostlog

// releaseMode is true unless the binary is built with the debug tag;
// in release, Debug-level messages are downgraded to Info.
const releaseMode = true
