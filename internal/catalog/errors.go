package catalog

import "fmt"

// ErrorCode classifies catalog errors.
type ErrorCode string

const ErrCodeReferenceNotFound ErrorCode = "REFERENCE_NOT_FOUND"

// ReferenceNotFoundError is returned when a command names a category or
// tracker that is not part of the current page.
type ReferenceNotFoundError struct {
	Code       ErrorCode
	CategoryID string
	TrackerID  int // 0 when the category itself is missing
}

func (e *ReferenceNotFoundError) Error() string {
	if e.TrackerID != 0 {
		return fmt.Sprintf("%s: tracker %d not found in category %q", e.Code, e.TrackerID, e.CategoryID)
	}
	return fmt.Sprintf("%s: category %q not found", e.Code, e.CategoryID)
}

func categoryNotFound(id string) error {
	return &ReferenceNotFoundError{Code: ErrCodeReferenceNotFound, CategoryID: id}
}

func trackerNotFound(categoryID string, id int) error {
	return &ReferenceNotFoundError{Code: ErrCodeReferenceNotFound, CategoryID: categoryID, TrackerID: id}
}
