// Command palisade-demo is a small, deliberately out-of-scope CLI that
// exercises a palisade.Client end-to-end: it wraps a toy tool and fires two
// sample calls so a reader can see allow/deny outcomes without writing any
// Go.
package main

import "github.com/palisade-dev/palisade-go/cmd/palisade-demo/cmd"

func main() {
	cmd.Execute()
}
