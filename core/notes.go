package core

import (
	"fmt"
	"math"
	"strings"
)

// BuildCallNotes renders the human-readable summary attached to a call log.
func BuildCallNotes(summary CallSummary) string {
	lines := []string{
		"Call ID: " + summary.CallID,
		"Status: " + string(summary.Status),
		fmt.Sprintf("Duration: %d seconds", int64(math.Round(summary.Duration.Seconds()))),
		"",
		"Collected Information:",
	}
	data := summary.CollectedData

	if entry, ok := data[StepRecordGatekeeper]; ok {
		lines = append(lines, "- Gatekeeper: "+entry.Parameters.String("full_name"))
	}
	if entry, ok := data[StepVerifyAddress]; ok {
		lines = append(lines, "- Address: "+confirmedOr(entry.Parameters, "corrected_address"))
	}
	if entry, ok := data[StepVerifyEmail]; ok {
		lines = append(lines, "- Email: "+confirmedOr(entry.Parameters, "corrected_email"))
	}
	if entry, ok := data[StepVerifyDM]; ok {
		params := entry.Parameters
		status := "no longer with company"
		if params.Bool("still_employed") {
			status = "still employed"
		}
		name := params.String("corrected_name")
		if params.Bool("confirmed") {
			name = params.String("dm_name")
		}
		lines = append(lines, fmt.Sprintf("- IT Decision Maker: %s (%s)", name, status))
		if notes := params.String("notes"); notes != "" {
			lines = append(lines, "  Note: "+notes)
		}
	}
	if entry, ok := data[StepCollectDirectNumber]; ok {
		params := entry.Parameters
		if params.Bool("provided") {
			lines = append(lines, "- Direct Number: "+params.String("phone_number"))
		} else if notes := params.String("notes"); notes != "" {
			lines = append(lines, fmt.Sprintf("- Direct Number: %s (%s)", ValueNotProvided, notes))
		} else {
			lines = append(lines, "- Direct Number: "+ValueNotProvided)
		}
	}
	if reason := strings.TrimSpace(summary.EndReason); reason != "" {
		lines = append(lines, "", "End Reason: "+reason)
	}
	return strings.Join(lines, "\n")
}

func confirmedOr(params StepParameters, correctedKey string) string {
	if params.Bool("confirmed") {
		return "Confirmed"
	}
	return "Updated to: " + params.String(correctedKey)
}
