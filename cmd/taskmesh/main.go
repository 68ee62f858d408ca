// Command taskmesh is the taskmesh CLI client.
package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskmesh/taskmesh/internal/version"
)

const defaultServer = "http://localhost:9090"

var (
	serverURL string
	authToken string

	cli *Client
)

var rootCmd = &cobra.Command{
	Use:     "taskmesh",
	Short:   "Task dispatch platform client",
	Long:    `taskmesh submits tasks to a taskmeshd server, drives them through routing and execution, and inspects executor balances.`,
	Version: version.Version,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		cli = &Client{
			BaseURL:    strings.TrimRight(serverURL, "/"),
			Token:      authToken,
			HTTPClient: &http.Client{Timeout: 120 * time.Second},
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultServer, "taskmesh server URL")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", os.Getenv("TASKMESH_TOKEN"), "JWT auth token")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(balanceCmd)
	rootCmd.AddCommand(leaderboardCmd)
	rootCmd.AddCommand(eventsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
