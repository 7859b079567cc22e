//go:build !windows

package browser

// newFocusSuppressor returns a no-op on platforms without show-without-
// activating support.
func newFocusSuppressor() FocusSuppressor {
	return noopFocusSuppressor{}
}
