package pipeline

import (
	"github.com/AlecAivazis/survey/v2"
)

// Confirm gates a destructive or expensive operation (re-embedding the
// full corpus, provisioning a Vertex AI index) behind an interactive
// yes/no prompt. assumeYes bypasses the prompt for scripted/cron use
// (the CLI's --yes flag).
func Confirm(message string, assumeYes bool) (bool, error) {
	if assumeYes {
		return true, nil
	}

	ok := false
	prompt := &survey.Confirm{
		Message: message,
		Default: false,
	}
	if err := survey.AskOne(prompt, &ok); err != nil {
		return false, ConfigError("read confirmation: " + err.Error())
	}
	return ok, nil
}
