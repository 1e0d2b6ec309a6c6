package main

import (
	"os"

	"github.com/huynhanhkhoa2895/face-swap/cmd/faceswap/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
