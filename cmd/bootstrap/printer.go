package bootstrap

import (
	"fmt"
	"strings"
)

var bannerLines = []string{
	`  _   _                __     __    _          `,
	` | \ | | _____   ____ _\ \   / /__ (_) ___ ___ `,
	` |  \| |/ _ \ \ / / _' |\ \ / / _ \| |/ __/ _ \`,
	` | |\  | (_) \ V / (_| | \ V / (_) | | (_|  __/`,
	` |_| \_|\___/ \_/ \__,_|  \_/ \___/|_|\___\___|`,
}

// PrintBanner prints the startup banner with the service name.
func PrintBanner(name string) {
	colors := []string{
		"\x1b[38;5;165m",
		"\x1b[38;5;189m",
		"\x1b[38;5;207m",
		"\x1b[38;5;219m",
		"\x1b[38;5;225m",
		"\x1b[38;5;231m",
	}

	for i, line := range bannerLines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		color := colors[i%len(colors)]
		fmt.Println(color + line + "\x1b[0m")
	}
	fmt.Printf("\x1b[38;5;231m %s\x1b[0m\n\n", name)
}
