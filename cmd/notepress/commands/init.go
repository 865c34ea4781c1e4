package commands

import (
	"fmt"

	"github.com/himu-me/notepress/internal/config"
	"github.com/himu-me/notepress/internal/foundation/errors"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force bool `help:"Overwrite existing configuration file"`
}

func (i *InitCmd) Run(_ *Global, root *CLI) error {
	fmt.Printf("Writing configuration to %s\n", root.Config)
	if err := config.Init(root.Config, i.Force); err != nil {
		return errors.WrapError(err, errors.CategoryConfig, "initialization failed").
			WithContext("path", root.Config).
			Build()
	}
	fmt.Println("initialized successfully")
	return nil
}
