// Package cli provides a command-line interface (CLI) framework for Go applications.
//
// This package offers a set of utilities and abstractions to build command-line interfaces
// with ease. It includes features such as command parsing, flag handling, and subcommand support.
//
// Usage:
// To use this package, import it in your Go code:
//
//	import "oss.nandlabs.io/jobexec/cli"
//
// Example:
// Here's a simple example that demonstrates how to use the `cli` package:
//
//	package main
//
//	import (
//	    "fmt"
//	    "os"
//
//	    "oss.nandlabs.io/jobexec/cli"
//	)
//
//	func main() {
//	    app := cli.NewCLI()
//	    app.AddVersion("v1.0.0")
//
//	    app.AddCommand(cli.NewCommand("hello", "Prints a greeting", "v1.0.0", func(c *cli.Context) error {
//	        fmt.Println("Hello, World!")
//	        return nil
//	    }))
//
//	    err := app.Execute() // reads os.Args, e.g. "myapp hello"
//	    if err != nil {
//	        fmt.Println(err)
//	        os.Exit(1)
//	    }
//	}
//
// For more information and examples, please refer to the package documentation at:
//
//	https://pkg.go.dev/oss.nandlabs.io/jobexec/cli
package cli
