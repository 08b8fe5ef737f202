// Command financasctl runs maintenance and reporting tasks against the
// financas data store.
package main

import (
	"os"

	"github.com/spf13/viper"

	"financas/internal/cli"
)

func main() {
	cli.LoadEnvFile()

	if err := newRootCmd(viper.New()).Execute(); err != nil {
		os.Exit(1)
	}
}
