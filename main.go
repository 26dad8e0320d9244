package main

import (
	"os"

	"github.com/jheroy/Redmine-desktop/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
