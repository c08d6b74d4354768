package main

import (
	"github.com/tanpawarit/foodiespot-agent/cmd"
	_ "github.com/tanpawarit/foodiespot-agent/pkg/logger/autoload"
)

func main() {
	cmd.Execute()
}
