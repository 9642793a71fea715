package gbfsanalytics

import (
	"log"
	"os"
)

// InitLogging points the process-wide logger at stdout with
// microsecond timestamps, so poll ticks can be lined up across feeds.
func InitLogging() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
}
