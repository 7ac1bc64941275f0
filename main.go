package main

import (
	"github.com/manifest-network/rootcheck/cmd/rootcheck"
)

func main() {
	rootcheck.Execute()
}
