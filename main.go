package main

import "github.com/PlyoJay/wmsview/internal/cmd"

func main() {
	cmd.Execute()
}
