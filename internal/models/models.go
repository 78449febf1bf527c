package models

import (
	"time"
)

// Model defines the base interface for all persistent models.
type Model interface {
	GetID() string      // GetID returns the unique identifier for this model
	Created() time.Time // Created returns when this model was created
	Updated() time.Time // Updated returns when this model was last updated
	Validate() error    // Validate checks if the model's data is valid and returns an error if not
}
