package logger_test

import (
	"testing"

	"github.com/ardanlabs/powchain/foundation/logger"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

func Test_New(t *testing.T) {
	t.Log("Given the need to construct a service logger.")
	{
		log, err := logger.New("TEST", "stderr")
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct the logger: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to construct the logger.", success)

		log.Infow("test", "status", "logger constructed")
	}
}
