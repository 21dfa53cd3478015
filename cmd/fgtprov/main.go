// Command fgtprov provisions FortiGate address objects and groups from CSV.
package main

import "os"

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}
