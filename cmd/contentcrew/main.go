// Contentcrew researches a topic on the web and writes an article about it
// with two cooperating LLM agents. It runs as an interactive CLI, a web app
// or an MCP server.
package main

import (
	"fmt"
	"os"

	"github.com/germanamz/contentcrew/cmd/contentcrew/internal/styles"
	"github.com/germanamz/contentcrew/pkg/content"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const usageText = `Usage: contentcrew [command] [flags]

Commands:
  generate   Research a topic and write an article (default)
  serve      Run the web app
  mcp        Serve the generate_content tool over stdio MCP
  history    List, show and diff earlier runs
  init       Write a default config to .contentcrew/config.yaml
  version    Print the version

Run "contentcrew <command> -h" for the flags of a command.
`

func main() {
	cmd, args := "generate", os.Args[1:]
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "generate":
		err = runGenerate(args)
	case "serve":
		err = runServe(args)
	case "mcp":
		err = runMCP(args)
	case "history":
		err = runHistory(args)
	case "init":
		err = runInit(args)
	case "version":
		fmt.Println(version)
	case "help":
		fmt.Fprint(os.Stderr, usageText)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usageText)
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, styles.ErrorBlockStyle.Render(content.ErrorMessage(err)))
		os.Exit(1)
	}
}
