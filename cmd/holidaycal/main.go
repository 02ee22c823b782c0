package main

import (
	"os"

	appLog "holidaycal/internal/log"
)

func main() {
	err := newRootCmd().Execute()
	appLog.Sync()
	if err != nil {
		os.Exit(1)
	}
}
