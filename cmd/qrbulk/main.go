// Command qrbulk generates QR code archives from CSV and spreadsheet files
// without the web UI.
package main

import (
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// BATCH_* defaults may come from a local .env; a missing file is fine.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
