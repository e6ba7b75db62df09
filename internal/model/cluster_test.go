package model

import (
	"testing"
)

func TestNewPayeeMergeCluster_DeterministicIdentity(t *testing.T) {
	a := NewPayeeMergeCluster("budget-1", []ClusterPayee{
		{ID: "p2", Name: "Starbucks #4521"},
		{ID: "p1", Name: "Starbucks"},
	})
	b := NewPayeeMergeCluster("budget-1", []ClusterPayee{
		{ID: "p1", Name: "Starbucks"},
		{ID: "p2", Name: "Starbucks #4521"},
	})

	if a.ClusterID != b.ClusterID {
		t.Errorf("ClusterID depends on input order: %q vs %q", a.ClusterID, b.ClusterID)
	}
	if a.GroupHash != b.GroupHash {
		t.Errorf("GroupHash depends on input order: %q vs %q", a.GroupHash, b.GroupHash)
	}
	if a.ClusterID != "p1-p2" {
		t.Errorf("ClusterID = %q, want sorted-id join p1-p2", a.ClusterID)
	}

	renamed := NewPayeeMergeCluster("budget-1", []ClusterPayee{
		{ID: "p1", Name: "Starbucks Coffee"},
		{ID: "p2", Name: "Starbucks #4521"},
	})
	if renamed.GroupHash == a.GroupHash {
		t.Error("GroupHash should change when a member name changes")
	}
	if renamed.ClusterID != a.ClusterID {
		t.Error("ClusterID should not change when only names change")
	}
}

func TestPayeeMergeCluster_Validate(t *testing.T) {
	tooSmall := NewPayeeMergeCluster("b", []ClusterPayee{{ID: "p1", Name: "Solo"}})
	if err := tooSmall.Validate(); err == nil {
		t.Error("single-member cluster should fail validation")
	}

	dup := PayeeMergeCluster{Payees: []ClusterPayee{
		{ID: "p1", Name: "A"},
		{ID: "p1", Name: "A Again"},
	}}
	if err := dup.Validate(); err == nil {
		t.Error("duplicate member id should fail validation")
	}

	ok := NewPayeeMergeCluster("b", []ClusterPayee{
		{ID: "p1", Name: "A"},
		{ID: "p2", Name: "B"},
	})
	if err := ok.Validate(); err != nil {
		t.Errorf("valid cluster failed validation: %v", err)
	}
}

func TestPayeeListHash_OrderIndependent(t *testing.T) {
	a := PayeeListHash([]Payee{{ID: "1", Name: "Amazon"}, {ID: "2", Name: "Target"}})
	b := PayeeListHash([]Payee{{ID: "2", Name: "Target"}, {ID: "1", Name: "Amazon"}})
	if a != b {
		t.Error("payee list hash should be order-independent")
	}

	c := PayeeListHash([]Payee{{ID: "1", Name: "Amazon.com"}, {ID: "2", Name: "Target"}})
	if a == c {
		t.Error("payee list hash should change when content changes")
	}
}
