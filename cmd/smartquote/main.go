package main

import (
	"fmt"
	"os"
)

func main() {
	c := &cli{}
	if err := execute(c, newRootCmd(c)); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
