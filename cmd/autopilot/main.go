package main

import (
	"fmt"
	"os"

	"github.com/bizflow/autopilot/internal/cli"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{Use: "autopilot"}

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Printf("No .env file found or failed to load: %v. Proceeding with environment variables.\n", err)
	}
	rootCmd.PersistentFlags().String("db", "", "Database connection string (falls back to DATABASE_URL)")
	cli.SetupCLI(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
