package core

import (
	"reflect"
	"testing"
	"time"
)

func TestNormalizeStep(t *testing.T) {
	now := time.Date(2026, 3, 14, 23, 30, 0, 0, time.FixedZone("PST", -8*3600))
	cases := []struct {
		name   string
		step   StepName
		params StepParameters
		want   Fields
	}{
		{
			name:   "gatekeeper",
			step:   StepRecordGatekeeper,
			params: StepParameters{"full_name": " Jane Doe "},
			want:   Fields{FieldGatekeeperName: "Jane Doe"},
		},
		{
			name:   "gatekeeper without name",
			step:   StepRecordGatekeeper,
			params: StepParameters{},
			want:   Fields{},
		},
		{
			name:   "address confirmed",
			step:   StepVerifyAddress,
			params: StepParameters{"confirmed": true},
			want:   Fields{FieldAddressVerified: ValueYes},
		},
		{
			name:   "address corrected",
			step:   StepVerifyAddress,
			params: StepParameters{"confirmed": false, "corrected_address": "1 Main St"},
			want:   Fields{FieldPhysicalAddress: "1 Main St", FieldAddressVerified: ValueUpdated},
		},
		{
			name:   "address neither",
			step:   StepVerifyAddress,
			params: StepParameters{"confirmed": false},
			want:   Fields{},
		},
		{
			name:   "email corrected",
			step:   StepVerifyEmail,
			params: StepParameters{"confirmed": "no", "corrected_email": "it@example.com"},
			want:   Fields{FieldEmailAddress: "it@example.com", FieldEmailVerified: ValueUpdated},
		},
		{
			name:   "dm confirmed",
			step:   StepVerifyDM,
			params: StepParameters{"confirmed": true, "still_employed": true, "dm_name": "Sam"},
			want:   Fields{FieldDMVerified: ValueYes},
		},
		{
			name:   "dm corrected",
			step:   StepVerifyDM,
			params: StepParameters{"confirmed": false, "still_employed": true, "corrected_name": "Alex", "notes": "new hire"},
			want:   Fields{FieldDMName: "Alex", FieldDMVerified: ValueUpdated, FieldDMNotes: "new hire"},
		},
		{
			name:   "dm gone",
			step:   StepVerifyDM,
			params: StepParameters{"confirmed": false, "still_employed": false, "notes": "left in May"},
			want:   Fields{FieldDMVerified: ValueNoLongerEmployed, FieldDMNotes: "left in May"},
		},
		{
			name:   "direct number provided",
			step:   StepCollectDirectNumber,
			params: StepParameters{"provided": true, "phone_number": "+15550001111"},
			want:   Fields{FieldDirectNumber: "+15550001111"},
		},
		{
			name:   "direct number refused",
			step:   StepCollectDirectNumber,
			params: StepParameters{"provided": false, "notes": "policy"},
			want:   Fields{FieldDirectNumber: ValueNotProvided, FieldDirectNumberNotes: "policy"},
		},
		{
			name:   "complete success",
			step:   StepCompleteCall,
			params: StepParameters{"outcome": "success", "notes": "ok"},
			want: Fields{
				FieldVerificationStatus: ValueVerified,
				FieldCallOutcome:        "success",
				FieldCallNotes:          "ok",
				FieldLastCallDate:       "2026-03-15",
			},
		},
		{
			name:   "end call",
			step:   StepEndCall,
			params: StepParameters{"outcome": "refused", "notes": "hung up"},
			want: Fields{
				FieldVerificationStatus: ValueFailed,
				FieldCallOutcome:        "refused",
				FieldCallNotes:          "hung up",
				FieldLastCallDate:       "2026-03-15",
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := NormalizeStep(tc.step, tc.params, now)
			if !ok {
				t.Fatalf("expected %q to be a known step", tc.step)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("expected %#v, got %#v", tc.want, got)
			}
		})
	}
}

func TestNormalizeStepUnknown(t *testing.T) {
	fields, ok := NormalizeStep(StepName("foo_bar"), StepParameters{"x": 1}, time.Now())
	if ok || fields != nil {
		t.Fatalf("expected unknown step to produce nothing, got %#v %v", fields, ok)
	}
}

func TestStepParametersCoercion(t *testing.T) {
	params := StepParameters{"yes": "Yes", "num": float64(1), "zero": float64(0), "row": float64(12)}
	if !params.Bool("yes") || !params.Bool("num") || params.Bool("zero") || params.Bool("missing") {
		t.Fatalf("unexpected bool coercion")
	}
	if params.String("row") != "12" {
		t.Fatalf("expected numeric string, got %q", params.String("row"))
	}
}
