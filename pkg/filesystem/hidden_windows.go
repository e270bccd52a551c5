package filesystem

import (
	"fmt"

	"golang.org/x/sys/windows"
)

// MarkHidden sets the Windows "hidden" file attribute on path, since a
// leading '.' has no special meaning to Windows Explorer.
func MarkHidden(path string) error {
	pointer, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return fmt.Errorf("unable to convert path to UTF-16: %w", err)
	}

	attributes, err := windows.GetFileAttributes(pointer)
	if err != nil {
		return fmt.Errorf("unable to query file attributes: %w", err)
	}

	return windows.SetFileAttributes(pointer, attributes|windows.FILE_ATTRIBUTE_HIDDEN)
}
