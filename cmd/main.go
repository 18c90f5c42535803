package main

import (
	"os"

	"github.com/IrishDec/heiyuquiz-server/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
