package orchestrator

import (
	"log"
	"os"
)

// debugEnabled gates verbose coordinator logging. Set VESPERA_DEBUG=1 to
// see retry attempts and job transitions.
var debugEnabled = os.Getenv("VESPERA_DEBUG") != ""

// debugLog writes a debug line when VESPERA_DEBUG is set.
func debugLog(format string, args ...interface{}) {
	if debugEnabled {
		log.Printf("[debug] "+format, args...)
	}
}
