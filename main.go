package main

import "github.com/valpere/peretran-nmt/cmd"

func main() {
	cmd.Execute()
}
