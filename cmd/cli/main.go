// corrosion - potentiostat data extraction and corrosion tracking
//
// corrosion reads Gamry measurement files, fits the polarization
// resistance of each LPR sweep, and reports it against elapsed hours.
package main

import (
	"os"

	"github.com/ccollicutt/corrosion/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
