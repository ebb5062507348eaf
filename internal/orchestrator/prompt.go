package orchestrator

import "github.com/blackwell-systems/gitpm/internal/log"

// DeclinePrompter declines every offer. It is the default when no Prompter is
// configured, so nothing is installed without an explicit request.
type DeclinePrompter struct{}

func (DeclinePrompter) ConfirmUpdate(name, installed, latest string) bool {
	log.Info("update available for %s: %s -> %s", name, installed, latest)
	return false
}

func (DeclinePrompter) ConfirmReinstall(name, source string) bool { return false }

func (DeclinePrompter) Notify(title, message string) {
	log.Warn("%s: %s", title, message)
}

// AcceptPrompter accepts every offer, for unattended runs (--yes).
type AcceptPrompter struct{}

func (AcceptPrompter) ConfirmUpdate(name, installed, latest string) bool { return true }

func (AcceptPrompter) ConfirmReinstall(name, source string) bool { return true }

func (AcceptPrompter) Notify(title, message string) {
	log.Warn("%s: %s", title, message)
}
