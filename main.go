package main

import "github.com/ValentinKolb/wlock/cmd"

func main() {
	cmd.Execute()
}
