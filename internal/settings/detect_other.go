//go:build !(js && wasm)

package settings

// DetectCapabilities reports what the running platform offers. Native
// builds always have a filesystem; whether any directory is writable is
// decided later by the file backend's fallback chain.
func DetectCapabilities() Capabilities {
	return Capabilities{Filesystem: true}
}
