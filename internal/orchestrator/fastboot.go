package orchestrator

import "strings"

// Fastboot command strings this core understands while servicing the
// re-entry loop (spec.md §2/§5's "Fastboot Re-entry/UX" component). The
// USB protocol framing these arrive over is out of scope (spec.md §1
// Non-goals: "speaking USB"); this is purely the command→action mapping a
// transport layer would drive.
const (
	CmdContinue         = "continue"
	CmdReboot           = "reboot"
	CmdRebootRecovery   = "reboot-recovery"
	CmdRebootBootloader = "reboot-bootloader"
	CmdRebootFastboot   = "reboot-fastboot"
	CmdOEMDeviceInfo    = "oem device-info"
)

// FastbootAction is what the loop should do after handling one command.
type FastbootAction int

const (
	// ActionStayInLoop keeps servicing commands (the default for an
	// unrecognized command, and for oem device-info's info response).
	ActionStayInLoop FastbootAction = iota
	// ActionContinueBoot exits the loop and resumes the §4.2-§4.8 pipeline
	// against whatever target the selector chose before FASTBOOT fired.
	ActionContinueBoot
	// ActionReboot exits the loop and re-enters the whole pipeline
	// targeting NORMAL_BOOT.
	ActionReboot
	// ActionRebootRecovery re-enters the pipeline with RECOVERY forced.
	ActionRebootRecovery
	// ActionRebootBootloader re-enters the fastboot loop itself.
	ActionRebootBootloader
)

// FastbootResult is what handling one command in the loop produces.
type FastbootResult struct {
	Action   FastbootAction
	Response string // populated for informational commands like oem device-info
}

// HandleFastbootCommand maps a single command string to a FastbootResult.
// deviceInfo is whatever identifying text (unlock state, slot info, build
// fingerprint) the caller wants oem device-info to report; this package
// has no opinion on its format.
func HandleFastbootCommand(cmd, deviceInfo string) FastbootResult {
	switch strings.TrimSpace(cmd) {
	case CmdContinue:
		return FastbootResult{Action: ActionContinueBoot}
	case CmdReboot:
		return FastbootResult{Action: ActionReboot}
	case CmdRebootRecovery:
		return FastbootResult{Action: ActionRebootRecovery}
	case CmdRebootBootloader, CmdRebootFastboot:
		return FastbootResult{Action: ActionRebootBootloader}
	case CmdOEMDeviceInfo:
		return FastbootResult{Action: ActionStayInLoop, Response: deviceInfo}
	default:
		return FastbootResult{Action: ActionStayInLoop}
	}
}
