package main

import (
	"os"

	claudekitcmder "github.com/papercomputeco/claudekit/cmd/claudekit"
)

func main() {
	cmd := claudekitcmder.NewClaudekitCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
