package main

import "github.com/loocor/codmate/internal/cmd"

func main() {
	cmd.Execute()
}
