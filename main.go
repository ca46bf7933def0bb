// The main package for the portal executable.
package main

import (
	"github.com/JakeFAU/subsidy-portal/cmd"
)

func main() {
	cmd.Execute()
}
