package cmd

import (
	"fmt"
	"log"
	"os"
)

var (
	// globals used to patch over calls to os.Exit() during test

	logFatalf = log.Fatalf
	osExit    = os.Exit
)

func wrapFatalln(msg string, err error) {
	logFatalf("%v", fmt.Errorf(msg+": %w", err))
}
