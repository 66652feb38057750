// Quiz Chat - web front end for the quiz generation service
package main

import "os"

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
