package main

import (
	"Go2DAQSpectra/cmd/daq-measure/cmd"
	"os"
)

func main() {
	if err := cmd.RootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
