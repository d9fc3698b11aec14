package main

import (
	"fmt"
	"strconv"
	"strings"

	"glimpse/internal/ipc"
)

func renderStatus(resp *ipc.StatusResponse, colorize bool) string {
	var lines []string
	st := resp.Status

	lines = append(lines, renderSectionHeader("Daemon", colorize)...)
	if st.Running {
		lines = append(lines, renderStatusLine("Daemon", statusOK, fmt.Sprintf("running (pid %d)", st.PID), colorize))
	} else {
		lines = append(lines, renderStatusLine("Daemon", statusWarn, "stopped", colorize))
	}
	hotplugKind := statusOK
	if !st.Hotplug {
		hotplugKind = statusWarn
	}
	lines = append(lines, renderStatusLine("Hotplug monitor", hotplugKind, yesNo(st.Hotplug), colorize))
	lines = append(lines, renderValueLine("Database", st.DatabasePath))
	lines = append(lines, renderValueLine("Lock file", st.LockFilePath))

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Capture", colorize)...)
	switch {
	case !st.Capture.Running:
		lines = append(lines, renderStatusLine("Capture", statusError, "loop not running", colorize))
	case !st.Capture.Enabled:
		lines = append(lines, renderStatusLine("Capture", statusWarn, "paused", colorize))
	default:
		lines = append(lines, renderStatusLine("Capture", statusOK, "active", colorize))
	}
	lines = append(lines, renderValueLine("Displays", formatDisplays(st.Displays)))
	lines = append(lines, renderValueLine("Last cycle", formatWhen(st.Capture.LastCycle)))
	lines = append(lines, renderValueLine("Cycles", fmt.Sprintf("%d run, %d skipped", st.Capture.CyclesRun, st.Capture.CyclesSkipped)))
	lines = append(lines, renderValueLine("Frames", fmt.Sprintf("%d accepted, %d rejected", st.Capture.FramesAccepted, st.Capture.FramesRejected)))
	lines = append(lines, renderValueLine("Stored", strconv.Itoa(st.Capture.EntriesStored)))
	if st.Capture.LastSkipReason != "" {
		lines = append(lines, renderValueLine("Last skip", st.Capture.LastSkipReason))
	}
	if st.Capture.LastError != "" {
		lines = append(lines, renderStatusLine("Last error", statusError, st.Capture.LastError, colorize))
	}

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Archive", colorize)...)
	switch {
	case !st.Archive.Enabled:
		lines = append(lines, renderStatusLine("Archiver", statusInfo, "disabled", colorize))
	case st.Archive.Running:
		lines = append(lines, renderStatusLine("Archiver", statusInfo, "pass in progress", colorize))
	default:
		lines = append(lines, renderStatusLine("Archiver", statusOK, "idle", colorize))
	}
	lines = append(lines, renderValueLine("Last pass", formatWhen(st.Archive.LastRun)))
	if !st.Archive.LastRun.IsZero() {
		last := st.Archive.Last
		lines = append(lines, renderValueLine("Last result", fmt.Sprintf("%d scanned, %d archived, %d already present, %d skipped, %d failed",
			last.Scanned, last.Archived, last.AlreadyPresent, last.Skipped, last.Failed)))
	}

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Entries", colorize)...)
	if st.EntriesError != "" {
		lines = append(lines, renderStatusLine("Entries", statusError, st.EntriesError, colorize))
	} else {
		lines = append(lines, renderValueLine("Total", fmt.Sprintf("%d (%d archived)", st.Entries.Total, st.Entries.Archived)))
		lines = append(lines, renderValueLine("With text", strconv.Itoa(st.Entries.WithText)))
		embedded := strconv.Itoa(st.Entries.WithEmbedding)
		if st.Entries.EmbeddingDim > 0 {
			embedded += fmt.Sprintf(" (dim %d)", st.Entries.EmbeddingDim)
		}
		lines = append(lines, renderValueLine("With embedding", embedded))
		lines = append(lines, renderValueLine("Oldest", formatWhen(st.Entries.Oldest)))
		lines = append(lines, renderValueLine("Newest", formatWhen(st.Entries.Newest)))
	}

	if len(st.Dependencies) > 0 {
		lines = append(lines, "")
		lines = append(lines, renderSectionHeader("Dependencies", colorize)...)
		for _, dep := range st.Dependencies {
			kind := statusOK
			message := dep.Command
			if !dep.Available {
				kind = statusError
				if dep.Optional {
					kind = statusWarn
				}
				message = dep.Detail
			}
			lines = append(lines, renderStatusLine(dep.Name, kind, message, colorize))
		}
	}

	return strings.Join(lines, "\n")
}

func formatDisplays(displays []int) string {
	if len(displays) == 0 {
		return "none seen"
	}
	parts := make([]string, len(displays))
	for i, d := range displays {
		parts[i] = strconv.Itoa(d)
	}
	return strings.Join(parts, ", ")
}
