package main

import (
	"os"

	"github.com/LeonardoBeccarini/crop_advisor/internal/log"
)

func main() {
	defer log.Sync()
	if err := newRootCommand().Execute(); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}
