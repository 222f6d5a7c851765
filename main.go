/*
Copyright © 2025 FHIRLake Contributors
*/
package main

import "github.com/thirdopinion/fhirlake/cmd"

func main() {
	cmd.Execute()
}
