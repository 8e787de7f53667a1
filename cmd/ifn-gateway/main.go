package main

import "github.com/danubesoft/ifn-gateway/cmd/ifn-gateway/cmd"

func main() {
	cmd.Execute()
}
