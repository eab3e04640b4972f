package main

import (
	"github.com/bornholm/rewarder/internal/command"
	"github.com/bornholm/rewarder/internal/command/config"
	"github.com/bornholm/rewarder/internal/command/history"
	"github.com/bornholm/rewarder/internal/command/search"
	"github.com/bornholm/rewarder/internal/command/terms"
)

var version = "dev"

func main() {
	command.Main(
		"rewarder",
		version,
		"Perform daily rewarded web searches from trending terms",
		search.Search(),
		terms.Terms(),
		history.History(),
		config.Config(),
	)
}
