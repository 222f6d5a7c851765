package services_test

import (
	"github.com/thirdopinion/fhirlake/internal/lib"
)

// newTestLogger returns a logger that stays quiet unless something
// goes badly wrong
func newTestLogger() *lib.Logger {
	return lib.NewLogger(lib.LogLevelError)
}
