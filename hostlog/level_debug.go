//go:build debug

package hostlog

// releaseMode is false under the debug tag; Debug-level messages keep
// their own level instead of being downgraded to Info.
const releaseMode = false
