// The main package for the seimas executable.
package main

import "github.com/2448334/seimas-scraper/cmd"

func main() {
	cmd.Execute()
}
