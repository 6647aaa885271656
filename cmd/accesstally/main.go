package main

import "github.com/dbsmedya/accesstally/cmd/accesstally/cmd"

func main() {
	cmd.Execute()
}
