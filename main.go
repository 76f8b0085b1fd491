package main

import "github.com/dbbridge/dbbridge/cmd/dbbridge"

func main() {
	cmd.Execute()
}
