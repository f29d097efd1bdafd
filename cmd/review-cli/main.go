package main

import "github.com/web3nomad/Rabby/cmd/review-cli/cmd"

func main() {
	cmd.Execute()
}
