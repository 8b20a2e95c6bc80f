// Package shutdown asks the platform to reboot or power off.
package shutdown

import (
	"context"
	"os"
	"os/exec"
	"strings"

	"codeberg.org/mutker/thermald/internal/errors"
	"codeberg.org/mutker/thermald/internal/logger"
	"codeberg.org/mutker/thermald/internal/thermal"
)

const (
	ErrNoCommand     = errors.ErrorCode("shutdown_no_command")
	ErrCommandFailed = errors.ErrorCode("shutdown_command_failed")
)

// ReasonEnv carries the shutdown reason to the command.
const ReasonEnv = "THERMALD_SHUTDOWN_REASON"

// CommandService runs a configured command, such as "systemctl reboot",
// when a shutdown is requested. Power-off requests use PowerOffCommand.
type CommandService struct {
	reboot   []string
	powerOff []string
	logger   logger.Logger
}

func NewCommandService(reboot, powerOff []string, log logger.Logger) *CommandService {
	return &CommandService{reboot: reboot, powerOff: powerOff, logger: log}
}

func (s *CommandService) Shutdown(ctx context.Context, req thermal.ShutdownRequest) error {
	errFactory := errors.New()

	args := s.powerOff
	if req.Reboot || len(args) == 0 {
		args = s.reboot
	}
	if len(args) == 0 {
		return errFactory.New(ErrNoCommand)
	}

	s.logger.Warn().
		Str("reason", string(req.Reason)).
		Bool("reboot", req.Reboot).
		Str("command", strings.Join(args, " ")).
		Msg("Requesting system shutdown")

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Env = append(os.Environ(), ReasonEnv+"="+string(req.Reason))

	if out, err := cmd.CombinedOutput(); err != nil {
		return errFactory.Wrap(ErrCommandFailed, err).WithData(strings.TrimSpace(string(out)))
	}

	return nil
}
