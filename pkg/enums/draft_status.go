package enums

import "fmt"

// DraftStatus marks whether an autosaved draft is still editable.
type DraftStatus string

const (
	DraftStatusDraft     DraftStatus = "draft"
	DraftStatusFinalized DraftStatus = "finalized"
)

var validDraftStatuses = []DraftStatus{
	DraftStatusDraft,
	DraftStatusFinalized,
}

// String implements fmt.Stringer.
func (d DraftStatus) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DraftStatus.
func (d DraftStatus) IsValid() bool {
	for _, candidate := range validDraftStatuses {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDraftStatus converts raw input into a DraftStatus.
func ParseDraftStatus(value string) (DraftStatus, error) {
	for _, candidate := range validDraftStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid draft status %q", value)
}

// DraftSaveState is the position of the autosave loop.
type DraftSaveState string

const (
	DraftSaveIdle    DraftSaveState = "idle"
	DraftSavePending DraftSaveState = "pending"
	DraftSaveSaving  DraftSaveState = "saving"
)
