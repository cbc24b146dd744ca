package main

import "github.com/geodesymiami/rsmas-insar-sub000/cmd"

func main() {
	cmd.Execute()
}
