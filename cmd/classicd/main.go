package main

import (
	"fmt"
	"os"

	classicd "github.com/blockhaven/classicd/pkg/cmd/classicd"
)

func main() {
	if err := classicd.App().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
