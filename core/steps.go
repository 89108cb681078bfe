package core

import (
	"time"
)

const (
	FieldGatekeeperName     = "gatekeeper_name"
	FieldPhysicalAddress    = "physical_address"
	FieldAddressVerified    = "address_verified"
	FieldEmailAddress       = "email_address"
	FieldEmailVerified      = "email_verified"
	FieldDMName             = "dm_name"
	FieldDMVerified         = "dm_verified"
	FieldDMNotes            = "dm_notes"
	FieldDirectNumber       = "direct_number"
	FieldDirectNumberNotes  = "direct_number_notes"
	FieldVerificationStatus = "verification_status"
	FieldCallOutcome        = "call_outcome"
	FieldCallNotes          = "call_notes"
	FieldLastCallDate       = "last_call_date"
)

const (
	ValueYes              = "Yes"
	ValueUpdated          = "Updated"
	ValueNoLongerEmployed = "No longer employed"
	ValueNotProvided      = "Not provided"
	ValueVerified         = "verified"
	ValueFailed           = "failed"
	ValueNotVerified      = "not_verified"
	OutcomeSuccess        = "success"
	OutcomeDisconnected   = "disconnected"
	OutcomeOther          = "other"
)

const (
	ReasonDisconnected = "disconnected unexpectedly"
	ReasonManualEnd    = "ended manually"
)

// NormalizeStep maps one function call to the backend fields it updates. The
// second result is false for unknown steps. An empty Fields value for a known
// step means there is nothing to write.
func NormalizeStep(step StepName, params StepParameters, now time.Time) (Fields, bool) {
	fields := Fields{}
	switch step {
	case StepRecordGatekeeper:
		if name := params.String("full_name"); name != "" {
			fields[FieldGatekeeperName] = name
		}

	case StepVerifyAddress:
		if params.Bool("confirmed") {
			fields[FieldAddressVerified] = ValueYes
		} else if corrected := params.String("corrected_address"); corrected != "" {
			fields[FieldPhysicalAddress] = corrected
			fields[FieldAddressVerified] = ValueUpdated
		}

	case StepVerifyEmail:
		if params.Bool("confirmed") {
			fields[FieldEmailVerified] = ValueYes
		} else if corrected := params.String("corrected_email"); corrected != "" {
			fields[FieldEmailAddress] = corrected
			fields[FieldEmailVerified] = ValueUpdated
		}

	case StepVerifyDM:
		notes := params.String("notes")
		switch {
		case params.Bool("confirmed") && params.Bool("still_employed"):
			fields[FieldDMVerified] = ValueYes
		case params.String("corrected_name") != "":
			fields[FieldDMName] = params.String("corrected_name")
			fields[FieldDMVerified] = ValueUpdated
			if notes != "" {
				fields[FieldDMNotes] = notes
			}
		case !params.Bool("still_employed"):
			fields[FieldDMVerified] = ValueNoLongerEmployed
			if notes != "" {
				fields[FieldDMNotes] = notes
			}
		}

	case StepCollectDirectNumber:
		if number := params.String("phone_number"); params.Bool("provided") && number != "" {
			fields[FieldDirectNumber] = number
		} else {
			fields[FieldDirectNumber] = ValueNotProvided
			if notes := params.String("notes"); notes != "" {
				fields[FieldDirectNumberNotes] = notes
			}
		}

	case StepEndCall, StepCompleteCall:
		return TerminalFields(params.String("outcome"), params.String("notes"), now), true

	default:
		return nil, false
	}
	return fields, true
}

// TerminalFields builds the final status update written when a call ends.
func TerminalFields(outcome string, notes string, now time.Time) Fields {
	status := ValueFailed
	if outcome == OutcomeSuccess {
		status = ValueVerified
	}
	return Fields{
		FieldVerificationStatus: status,
		FieldCallOutcome:        outcome,
		FieldCallNotes:          notes,
		FieldLastCallDate:       FormatCallDate(now),
	}
}

// DisconnectFields is the update written when a room ends under a live call.
// CRM contacts have no disconnected outcome, so they are marked not verified
// with outcome other.
func DisconnectFields(kind TargetKind, notes string, now time.Time) Fields {
	if kind != TargetKindCRM {
		return TerminalFields(OutcomeDisconnected, notes, now)
	}
	fields := TerminalFields(OutcomeOther, notes, now)
	fields[FieldVerificationStatus] = ValueNotVerified
	return fields
}

func FormatCallDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
