package main

import "os"

func main() {
	if err := newRootCmd(connect, runMigrations).Execute(); err != nil {
		os.Exit(1)
	}
}
