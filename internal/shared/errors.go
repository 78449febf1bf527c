package shared

import "fmt"

var (
	// Configuration errors
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// API and service errors
	ErrAPIRequest       = fmt.Errorf("API request failed")
	ErrPlaylistNotFound = fmt.Errorf("playlist not found")

	// Management errors
	ErrManagementNotFound     = fmt.Errorf("management record not found")
	ErrUnmappedManagementType = fmt.Errorf("management type has no update strategy")
	ErrPlaylistIDInUse        = fmt.Errorf("remote playlist already bound to another management definition")
	ErrPartialBatch           = fmt.Errorf("batch mutation partially applied")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
