package main

import "github.com/dbsmedya/keysync/cmd/keysync/cmd"

func main() {
	cmd.Execute()
}
