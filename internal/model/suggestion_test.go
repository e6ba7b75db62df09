package model

import (
	"testing"
)

func TestSuggestion_CombinedStatus(t *testing.T) {
	tests := []struct {
		name     string
		payee    SuggestionStatus
		category SuggestionStatus
		want     SuggestionStatus
	}{
		{name: "both pending", payee: StatusPending, category: StatusPending, want: StatusPending},
		{name: "payee approved category pending", payee: StatusApproved, category: StatusPending, want: StatusPending},
		{name: "both approved", payee: StatusApproved, category: StatusApproved, want: StatusApproved},
		{name: "skipped payee counts as resolved", payee: StatusSkipped, category: StatusApproved, want: StatusApproved},
		{name: "payee rejected wins", payee: StatusRejected, category: StatusApproved, want: StatusRejected},
		{name: "category rejected wins", payee: StatusApplied, category: StatusRejected, want: StatusRejected},
		{name: "both applied", payee: StatusApplied, category: StatusApplied, want: StatusApplied},
		{name: "applied plus approved is approved", payee: StatusApplied, category: StatusApproved, want: StatusApproved},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Suggestion{
				Payee:    PayeeSuggestion{Status: tt.payee},
				Category: CategorySuggestion{Status: tt.category},
			}
			if got := s.CombinedStatus(); got != tt.want {
				t.Errorf("CombinedStatus() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSuggestion_Retryable(t *testing.T) {
	withRationale := Suggestion{
		Category: CategorySuggestion{ProposedID: "cat-1", Rationale: "usual category for this merchant"},
	}
	if withRationale.Retryable() {
		t.Error("suggestion with category id and rationale should not be retryable")
	}

	emptyRationale := Suggestion{
		Category: CategorySuggestion{ProposedID: "cat-1"},
	}
	if !emptyRationale.Retryable() {
		t.Error("empty rationale indicates a transport failure and should be retryable")
	}

	noCategory := Suggestion{
		Category: CategorySuggestion{Rationale: "could not determine"},
	}
	if !noCategory.Retryable() {
		t.Error("missing category id should be retryable")
	}
}

func TestSuggestion_Validate(t *testing.T) {
	valid := Suggestion{
		TransactionID: "txn-1",
		RawPayeeName:  "AMZN Mktp US*2K3",
		Payee:         PayeeSuggestion{Status: StatusPending, Confidence: 0.9},
		Category:      CategorySuggestion{Status: StatusPending, Confidence: 0.8},
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid suggestion failed validation: %v", err)
	}

	badConfidence := valid
	badConfidence.Category.Confidence = 1.2
	if err := badConfidence.Validate(); err == nil {
		t.Error("confidence above 1.0 should fail validation")
	}

	badStatus := valid
	badStatus.Payee.Status = "unknown"
	if err := badStatus.Validate(); err == nil {
		t.Error("unknown status should fail validation")
	}
}
