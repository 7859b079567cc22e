package browser

// FocusSuppressor attempts to show a newly spawned browser window without
// stealing focus from the operator's current application. Implementations
// are best-effort: errors are ignored by the caller and absence of support
// never affects dispatch correctness.
type FocusSuppressor interface {
	ShowWithoutActivating(pid int) error
}

type noopFocusSuppressor struct{}

func (noopFocusSuppressor) ShowWithoutActivating(int) error { return nil }
