package engine

import (
	"fmt"
	"sync"
)

// SDK is the process-wide native library behind an engine binding.
type SDK interface {
	Name() string
	Init() error
}

var (
	setupOnce sync.Once
	setupSDK  string
	setupErr  error
)

// Setup initializes the engine SDK once per process. Later calls return the
// first outcome without touching the SDK again; asking for a different SDK
// after setup is an error.
func Setup(sdk SDK) error {
	if sdk == nil {
		return fmt.Errorf("engine sdk is required")
	}
	setupOnce.Do(func() {
		setupSDK = sdk.Name()
		if err := sdk.Init(); err != nil {
			setupErr = fmt.Errorf("initializing %s: %w", sdk.Name(), err)
		}
	})
	if setupErr != nil {
		return setupErr
	}
	if setupSDK != sdk.Name() {
		return fmt.Errorf("engine sdk %s already initialized, cannot switch to %s", setupSDK, sdk.Name())
	}
	return nil
}
