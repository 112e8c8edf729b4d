// Command xval inspects budget schedules, resampling splits and parameter
// spaces without training anything.
//
// Examples:
//
//	xval allocate --budget 81 --arms 27 --rate 3 --mode hyperband
//	xval splits --kind kfold --n 10 --k 3 --seed 42
//	xval space --config search.yaml --sample 5
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
