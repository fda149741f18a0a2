package main

import (
	"fmt"
	"io"
	"os"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint for testing.
//
// Exit codes:
//
//	0 = success
//	1 = the operation ran but reported a negative outcome
//	2 = usage or runtime error
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return 2
	}

	switch args[1] {
	case "cycle":
		return runCycleCmd(args[2:], stdout, stderr)
	case "run":
		return runLoopCmd(args[2:], stdout, stderr)
	case "vote":
		return runVoteCmd(args[2:], stdout, stderr)
	case "reset-votes":
		return runResetCmd(args[2:], stdout, stderr)
	case "tally":
		return runTallyCmd(args[2:], stdout, stderr)
	case "proposals":
		return runProposalsCmd(args[2:], stdout, stderr)
	case "status":
		return runStatusCmd(args[2:], stdout, stderr)
	case "verify":
		return runVerifyCmd(args[2:], stdout, stderr)
	case "log":
		return runLogCmd(args[2:], stdout, stderr)
	case "export":
		return runExportCmd(args[2:], stdout, stderr)
	case "seed-thread":
		return runSeedCmd(args[2:], stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

const (
	colorReset = "\033[0m"
	colorBold  = "\033[1m"
	colorBlue  = "\033[34m"
	colorGray  = "\033[37m"
)

func printUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintf(w, "%sAgora%s\n", colorBold+colorBlue, colorReset)
	_, _ = fmt.Fprintf(w, "%sForum ideas in, tamper-evident decisions out.%s\n", colorGray, colorReset)
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintf(w, "%sUSAGE:%s\n", colorBold, colorReset)
	_, _ = fmt.Fprintln(w, "  agora <command> [flags]")
	_, _ = fmt.Fprintln(w, "")

	printSection(w, "PIPELINE")
	printCommand(w, "cycle", "Run one pipeline cycle and print its report")
	printCommand(w, "run", "Run cycles every -interval until interrupted")
	printCommand(w, "seed-thread", "Store a discussion thread (-title, -post ...)")

	printSection(w, "GOVERNANCE")
	printCommand(w, "vote", "Cast a vote (-proposal, -user, -rationale)")
	printCommand(w, "reset-votes", "Clear all votes and counters")
	printCommand(w, "tally", "Print vote counts per proposal")
	printCommand(w, "proposals", "List proposals")
	printCommand(w, "status", "Split open proposals by -threshold")

	printSection(w, "AUDIT")
	printCommand(w, "verify", "Verify the action log hash chain (-json)")
	printCommand(w, "log", "Print the action log")
	printCommand(w, "export", "Write a verified audit pack zip (-out)")

	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "Every command accepts -config <file>; AGORA_* variables override it.")
	_, _ = fmt.Fprintln(w, "")
}

func printSection(w io.Writer, title string) {
	_, _ = fmt.Fprintf(w, "%s%s:%s\n", colorBold, title, colorReset)
}

func printCommand(w io.Writer, name, desc string) {
	_, _ = fmt.Fprintf(w, "  %-14s %s\n", name, desc)
}
