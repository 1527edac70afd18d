// Command postfactum computes minimal performance changes that lift an
// alternative to a target TOPSIS closeness coefficient.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/ahrav/go-postfactum/internal/domain"
)

// Exit codes.
const (
	exitError      = 1
	exitNoSolution = 2
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if errors.Is(err, domain.ErrNoSolution) {
			os.Exit(exitNoSolution)
		}
		os.Exit(exitError)
	}
}
