package main

import "github.com/KaramelBytes/folio/cmd"

func main() {
	cmd.Execute()
}
