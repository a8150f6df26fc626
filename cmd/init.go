package cmd

import (
	"fmt"
	"os"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"htdeploy/internal/config"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a starter htdeploy.yaml in the current directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit()
		},
	}
}

func runInit() error {
	if config.ConfigExists() {
		return fmt.Errorf("%s already exists", config.ConfigFileName)
	}

	projectName, err := (&promptui.Prompt{Label: "Project name", Default: "my-project"}).Run()
	if err != nil {
		return err
	}
	localPath, err := (&promptui.Prompt{Label: "Local path", Default: "."}).Run()
	if err != nil {
		return err
	}
	host, err := (&promptui.Prompt{Label: "Remote host"}).Run()
	if err != nil {
		return err
	}
	username, err := (&promptui.Prompt{Label: "SSH username"}).Run()
	if err != nil {
		return err
	}
	remotePath, err := (&promptui.Prompt{Label: "Remote path"}).Run()
	if err != nil {
		return err
	}

	cfg := config.Config{
		ProjectName: projectName,
		LocalPath:   localPath,
		Auth: config.Auth{
			Username:   username,
			Host:       host,
			Port:       "22",
			RemotePath: remotePath,
			PrivateKey: "${HOME}/.ssh/id_rsa",
		},
		Ignores: []string{".git/", "node_modules/", "*.log"},
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(config.ConfigFileName, data, 0644); err != nil {
		return err
	}

	fmt.Printf("wrote %s\n", config.ConfigFileName)
	return nil
}
